package server

import (
	"github.com/ironsheep/captcha-tools-mcp/internal/colorspace"
	"github.com/ironsheep/captcha-tools-mcp/internal/metric"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
	"github.com/ironsheep/captcha-tools-mcp/internal/segment"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func regionProperties(props map[string]interface{}) map[string]interface{} {
	props["x1"] = map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"}
	props["y1"] = map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"}
	props["x2"] = map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"}
	props["y2"] = map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"}
	return props
}

func ocrProperties(props map[string]interface{}) map[string]interface{} {
	props["language"] = map[string]interface{}{
		"type":        "string",
		"description": "Tesseract language code (default from server config, usually 'eng')",
	}
	props["whitelist"] = map[string]interface{}{
		"type":        "string",
		"description": "Only recognize these characters, e.g. '0123456789'",
	}
	props["page_seg_mode"] = map[string]interface{}{
		"type":        "integer",
		"description": "Tesseract page segmentation mode 1-13 (7 = single line)",
		"minimum":     0,
		"maximum":     13,
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, color mode and number of distinct colors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Region Operations
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Scaling uses nearest-neighbor sampling so no new colors appear.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": regionProperties(map[string]interface{}{
					"path": pathProperty(),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},

		// Color Operations
		{
			Name:        "image_sample_color",
			Description: "Get the exact color value at a specific pixel coordinate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "image_dominant_colors",
			Description: "Return the N most frequent exact colors of an image or region. Use it to judge how noisy a CAPTCHA palette is before quantizing.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of dominant colors to return (default 5)",
						"default":     5,
					},
					"region": map[string]interface{}{
						"type":        "object",
						"properties":  regionProperties(map[string]interface{}{}),
						"description": "Optional region to analyze. If omitted, analyzes entire image.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "image_quantize",
			Description: "Reduce the image palette to a few representative colors (seeded k-means, number of colors chosen from the data). " +
				"Returns the quantized image as base64-encoded PNG and its palette.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"colorspace": map[string]interface{}{
						"type":        "string",
						"enum":        colorspace.Names(),
						"description": "Working color space (default from server config, usually LAB)",
					},
					"metric": map[string]interface{}{
						"type":        "string",
						"enum":        metric.Names(),
						"description": "Distance metric (default euclidean)",
					},
					"threshold1": map[string]interface{}{
						"type":        "number",
						"description": "Minimal share of pixels, in percent, for a color to seed a cluster",
						"default":     quantize.DefaultThreshold1,
						"minimum":     0,
						"maximum":     100,
					},
					"threshold2": map[string]interface{}{
						"type":        "number",
						"description": "Maximal distance, in percent of the largest distance in the color space, for colors to share a seed",
						"default":     quantize.DefaultThreshold2,
						"minimum":     0,
						"maximum":     100,
					},
					"max_iterations": map[string]interface{}{
						"type":        "integer",
						"description": "Refinement iteration cap",
						"default":     quantize.DefaultMaxIterations,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional path to also save the quantized image to",
					},
				},
				"required": []string{"path"},
			},
		},

		// OCR Operations
		{
			Name:        "image_ocr_full",
			Description: "Extract all text from the image using OCR. Returns text with word bounding boxes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": ocrProperties(map[string]interface{}{
					"path": pathProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_ocr_region",
			Description: "Extract text from a specific rectangular region of the image. Bounding boxes are in full-image coordinates.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": ocrProperties(regionProperties(map[string]interface{}{"path": pathProperty()})),
				"required":   []string{"path", "x1", "y1", "x2", "y2"},
			},
		},

		// Segmentation
		{
			Name: "image_segment",
			Description: "Split an image into same-color 4-connected segments and find the regions likely to hold a line of text. " +
				"Works best on quantized images; set quantize to quantize with the server settings first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"quantize": map[string]interface{}{
						"type":        "boolean",
						"description": "Quantize the image before segmenting it",
						"default":     false,
					},
					"max_width": map[string]interface{}{
						"type":        "integer",
						"description": "Widest segment that can be part of a letter",
						"default":     segment.DefaultOptions().MaxWidth,
					},
					"max_height": map[string]interface{}{
						"type":        "integer",
						"description": "Tallest segment that can be part of a letter",
						"default":     segment.DefaultOptions().MaxHeight,
					},
					"letter_delta": map[string]interface{}{
						"type":        "integer",
						"description": "Largest horizontal gap between letters of one word",
						"default":     segment.DefaultOptions().LetterDelta,
					},
					"word_delta": map[string]interface{}{
						"type":        "integer",
						"description": "Largest horizontal gap between words of one line",
						"default":     segment.DefaultOptions().WordDelta,
					},
					"min_word_area": map[string]interface{}{
						"type":        "integer",
						"description": "Words of this many pixels or fewer are dropped as noise",
						"default":     segment.DefaultOptions().MinWordArea,
					},
					"max_vertical_height": map[string]interface{}{
						"type":        "integer",
						"description": "Lines at most this wide are regrouped top to bottom; 0 disables the vertical pass",
						"default":     segment.DefaultOptions().MaxVerticalHeight,
					},
					"min_vfactor": map[string]interface{}{
						"type":        "number",
						"description": "Height to width ratio from which a candidate is marked vertical",
						"default":     segment.DefaultOptions().MinVFactor,
					},
				},
				"required": []string{"path"},
			},
		},

		// Solving
		{
			Name: "captcha_solve",
			Description: "Run the configured solving pipeline (by default quantize, upscale, OCR) on a CAPTCHA image and return the answer. " +
				"With an expected answer, also returns the edit distance and whether it matches.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"expected": map[string]interface{}{
						"type":        "string",
						"description": "Optional known answer to score the result against",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
