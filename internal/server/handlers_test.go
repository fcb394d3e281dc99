package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/captcha-tools-mcp/internal/config"
	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/pipeline"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
	"github.com/ironsheep/captcha-tools-mcp/internal/segment"
)

// writeTestImage encodes img as PNG in a temporary directory and returns its path.
func writeTestImage(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// createTestImageFile creates a solid color test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writeTestImage(t, img)
}

// createCaptchaFile draws a dark bar on a light background with a few
// near-duplicate noise colors, the shape of a typical text CAPTCHA.
func createCaptchaFile(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 60, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 60; x++ {
			c := color.RGBA{235, 235, 235, 255}
			if y >= 10 && y < 20 && x >= 10 && x < 50 {
				c = color.RGBA{30, 30, 90, 255}
			}
			switch (x + 2*y) % 9 {
			case 0:
				c.G += 4
			case 4:
				c.B -= 3
			}
			img.SetRGBA(x, y, c)
		}
	}
	return writeTestImage(t, img)
}

// callTool runs a tools/call request and returns the decoded text content.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (string, *MCPError) {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one entry, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	return content[0]["text"].(string), nil
}

// decodeTool runs a tool that must succeed and decodes its JSON output into v.
func decodeTool(t *testing.T, s *Server, name string, args map[string]interface{}, v interface{}) {
	t.Helper()

	text, mcpErr := callTool(t, s, name, args)
	if mcpErr != nil {
		t.Fatalf("%s: unexpected error: %s: %v", name, mcpErr.Message, mcpErr.Data)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("%s: failed to decode result: %v", name, err)
	}
}

func skipIfNoTesseract(t *testing.T, mcpErr *MCPError) {
	t.Helper()
	if mcpErr == nil {
		return
	}
	msg := strings.ToLower(mcpErr.Data.(string))
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "tessdata") ||
		strings.Contains(msg, "language") || strings.Contains(msg, "library") {
		t.Skip("Tesseract not available: " + msg)
	}
	t.Fatalf("unexpected error: %s: %v", mcpErr.Message, mcpErr.Data)
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info imaging.ImageInfo
	decodeTool(t, s, "image_load", map[string]interface{}{"path": path}, &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims imaging.DimensionsResult
	decodeTool(t, s, "image_dimensions", map[string]interface{}{"path": path}, &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("size: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"nonexistent file", "image_load", map[string]interface{}{"path": "/nonexistent/image.png"}},
		{"unknown tool", "image_detect_circles", map[string]interface{}{"path": "/x.png"}},
		{"bad argument type", "image_sample_color", map[string]interface{}{"path": "/x.png", "x": "left"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mcpErr := callTool(t, s, tt.tool, tt.args)
			if mcpErr == nil {
				t.Fatal("expected an error")
			}
			if mcpErr.Code != -32000 {
				t.Errorf("error code: got %d, want -32000", mcpErr.Code)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      7,
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil {
		t.Fatal("expected an error")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("error code: got %d, want -32602", resp.Error.Code)
	}
	if resp.ID != 7 {
		t.Errorf("ID: got %v, want 7", resp.ID)
	}
}

func TestHandleToolsCall_ImageCrop(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 50, 40, color.RGBA{0, 0, 255, 255})

	tests := []struct {
		name       string
		scale      interface{}
		wantWidth  int
		wantHeight int
	}{
		{"default scale", nil, 20, 10},
		{"double", 2.0, 40, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{"path": path, "x1": 10, "y1": 5, "x2": 30, "y2": 15}
			if tt.scale != nil {
				args["scale"] = tt.scale
			}

			var res imaging.EncodedImage
			decodeTool(t, s, "image_crop", args, &res)

			if res.Width != tt.wantWidth || res.Height != tt.wantHeight {
				t.Errorf("size: got %dx%d, want %dx%d", res.Width, res.Height, tt.wantWidth, tt.wantHeight)
			}
			if res.MimeType != "image/png" || res.ImageBase64 == "" {
				t.Errorf("expected base64 PNG, got mime %q", res.MimeType)
			}
		})
	}

	_, mcpErr := callTool(t, s, "image_crop", map[string]interface{}{"path": path, "x1": 0, "y1": 0, "x2": 60, "y2": 10})
	if mcpErr == nil {
		t.Error("crop outside the image should fail")
	}
}

func TestHandleToolsCall_ImageSampleColor(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 10, 10, color.RGBA{255, 128, 0, 255})

	var res imaging.ColorResult
	decodeTool(t, s, "image_sample_color", map[string]interface{}{"path": path, "x": 3, "y": 4}, &res)

	if res.Hex != "#FF8000" {
		t.Errorf("hex: got %s, want #FF8000", res.Hex)
	}

	_, mcpErr := callTool(t, s, "image_sample_color", map[string]interface{}{"path": path, "x": 10, "y": 0})
	if mcpErr == nil {
		t.Error("sampling outside the image should fail")
	}
}

func TestHandleToolsCall_ImageDominantColors(t *testing.T) {
	s := newTestServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 7 {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	path := writeTestImage(t, img)

	var res imaging.DominantColorsResult
	decodeTool(t, s, "image_dominant_colors", map[string]interface{}{"path": path}, &res)

	if res.Distinct != 2 || len(res.Colors) != 2 {
		t.Fatalf("got %d distinct and %d colors, want 2 and 2", res.Distinct, len(res.Colors))
	}
	if res.Colors[0].Hex != "#FFFFFF" || res.Colors[0].Pixels != 70 {
		t.Errorf("first color: got %s with %d pixels, want #FFFFFF with 70", res.Colors[0].Hex, res.Colors[0].Pixels)
	}

	decodeTool(t, s, "image_dominant_colors", map[string]interface{}{
		"path":   path,
		"region": map[string]interface{}{"x1": 0, "y1": 0, "x2": 5, "y2": 5},
	}, &res)
	if res.Distinct != 1 {
		t.Errorf("region distinct: got %d, want 1", res.Distinct)
	}
}

func TestHandleToolsCall_ImageQuantize(t *testing.T) {
	s := newTestServer(t)
	path := createCaptchaFile(t)
	out := filepath.Join(t.TempDir(), "out", "quantized.png")

	var res QuantizeResult
	decodeTool(t, s, "image_quantize", map[string]interface{}{"path": path, "output_path": out}, &res)

	if res.ColorsBefore <= 2 {
		t.Errorf("colors_before: got %d, want more than 2", res.ColorsBefore)
	}
	if res.ColorsAfter != 2 || len(res.Palette) != 2 {
		t.Errorf("got %d colors and %d palette entries, want 2", res.ColorsAfter, len(res.Palette))
	}
	if res.Colorspace != "LAB" || res.Metric != "euclidean" {
		t.Errorf("settings: got %s/%s, want LAB/euclidean", res.Colorspace, res.Metric)
	}
	if !res.Converged {
		t.Error("expected convergence on a two-tone image")
	}
	if res.Width != 60 || res.Height != 30 || res.ImageBase64 == "" {
		t.Errorf("encoded image: got %dx%d", res.Width, res.Height)
	}
	if res.Palette[0].Pixels < res.Palette[1].Pixels {
		t.Error("palette should be sorted by pixel count")
	}

	saved, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("quantized image not saved: %v", err)
	}
	dominant, err := imaging.DominantColors(saved, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dominant.Distinct != 2 {
		t.Errorf("saved image colors: got %d, want 2", dominant.Distinct)
	}
}

func TestHandleToolsCall_ImageSegment(t *testing.T) {
	s := newTestServer(t)
	path := createCaptchaFile(t)

	var res SegmentResult
	decodeTool(t, s, "image_segment", map[string]interface{}{"path": path, "quantize": true}, &res)

	if !res.Quantized || res.Width != 60 || res.Height != 30 {
		t.Errorf("got quantized=%t %dx%d", res.Quantized, res.Width, res.Height)
	}
	// background and bar
	if res.Segments != 2 || len(res.Colors) != 2 {
		t.Errorf("got %d segments in %d colors, want 2 in 2", res.Segments, len(res.Colors))
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates: got %d, want 1", len(res.Candidates))
	}
	if got := res.Candidates[0].Bounds; got != (segment.Bounds{X1: 10, Y1: 10, X2: 50, Y2: 20}) {
		t.Errorf("candidate bounds: got %+v", got)
	}
	if res.Candidates[0].Vertical {
		t.Error("a 40x10 bar is not vertical")
	}
	if len(res.Graphical) != 1 || res.Graphical[0] != 0 {
		t.Errorf("graphical: got %v, want the background only", res.Graphical)
	}
}

func TestHandleToolsCall_ImageSegment_Options(t *testing.T) {
	s := newTestServer(t)
	path := createCaptchaFile(t)

	text, mcpErr := callTool(t, s, "image_segment", map[string]interface{}{
		"path": path, "quantize": true, "max_width": 30,
	})
	if mcpErr != nil {
		t.Fatalf("unexpected error: %+v", mcpErr)
	}
	if !strings.Contains(text, `"candidates": []`) {
		t.Errorf("a bar wider than a letter is not text, got %s", text)
	}

	if !strings.Contains(text, `"graphical": [`) {
		t.Errorf("every segment is graphical without candidates, got %s", text)
	}

	_, mcpErr = callTool(t, s, "image_segment", map[string]interface{}{"path": path, "max_width": 0})
	if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "max_width") {
		t.Errorf("expected max_width error, got %+v", mcpErr)
	}
	_, mcpErr = callTool(t, s, "image_segment", map[string]interface{}{"path": path, "min_vfactor": 0})
	if mcpErr == nil || !strings.Contains(mcpErr.Data.(string), "min_vfactor") {
		t.Errorf("expected min_vfactor error, got %+v", mcpErr)
	}
	if s.cfg.Segment != segment.DefaultOptions() {
		t.Error("per-call options must not change the server configuration")
	}
}

func TestHandleToolsCall_ImageQuantize_Overrides(t *testing.T) {
	s := newTestServer(t)
	path := createCaptchaFile(t)

	var res QuantizeResult
	decodeTool(t, s, "image_quantize", map[string]interface{}{
		"path":           path,
		"colorspace":     "RGB",
		"metric":         "manhattan",
		"threshold2":     0,
		"max_iterations": 1,
	}, &res)

	if res.Colorspace != "RGB" || res.Metric != "manhattan" {
		t.Errorf("settings: got %s/%s, want RGB/manhattan", res.Colorspace, res.Metric)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations: got %d, want 1", res.Iterations)
	}
	if res.ColorsAfter <= 2 {
		t.Errorf("threshold2=0 keeps every frequent color apart, got %d colors", res.ColorsAfter)
	}

	// Overrides apply to one call only.
	if s.cfg.Quantizer.Colorspace != quantize.DefaultConfig().Colorspace {
		t.Error("server configuration was modified")
	}
}

func TestHandleToolsCall_ImageQuantize_InvalidSettings(t *testing.T) {
	s := newTestServer(t)
	path := createCaptchaFile(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown colorspace", map[string]interface{}{"colorspace": "CMYK"}},
		{"unknown metric", map[string]interface{}{"metric": "cosine"}},
		{"threshold out of range", map[string]interface{}{"threshold1": 101}},
		{"no iterations", map[string]interface{}{"max_iterations": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = path
			_, mcpErr := callTool(t, s, "image_quantize", tt.args)
			if mcpErr == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(mcpErr.Data.(string), "configuration") {
				t.Errorf("expected a configuration error, got %v", mcpErr.Data)
			}
		})
	}
}

func TestHandleToolsCall_OCRFull(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 50, color.RGBA{255, 255, 255, 255})

	text, mcpErr := callTool(t, s, "image_ocr_full", map[string]interface{}{
		"path":          path,
		"whitelist":     "0123456789",
		"page_seg_mode": 7,
	})
	skipIfNoTesseract(t, mcpErr)

	var res ocr.OCRResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if res.Text() != "" {
		t.Errorf("blank image should read as empty, got %q", res.Text())
	}
}

func TestHandleToolsCall_OCRRegion_InvalidRegion(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 50, color.RGBA{255, 255, 255, 255})

	_, mcpErr := callTool(t, s, "image_ocr_region", map[string]interface{}{
		"path": path, "x1": 50, "y1": 10, "x2": 40, "y2": 20,
	})
	if mcpErr == nil {
		t.Fatal("inverted region should fail")
	}
}

func TestHandleToolsCall_OCRArgs(t *testing.T) {
	base := ocr.DefaultOptions()
	empty := ""
	psm := 8

	tests := []struct {
		name string
		args ocrArgs
		want ocr.Options
	}{
		{"no overrides", ocrArgs{}, base},
		{"language", ocrArgs{Language: "deu"}, func() ocr.Options { o := base; o.Language = "deu"; return o }()},
		{"clear whitelist", ocrArgs{Whitelist: &empty}, base},
		{"psm", ocrArgs{PageSegMode: &psm}, func() ocr.Options { o := base; o.PageSegMode = 8; return o }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.args.options(base); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

// stubOCR stands in for Tesseract in solving tests.
type stubOCR struct {
	text string
}

func (f *stubOCR) Name() string { return config.FilterTextRecognition }

func (f *stubOCR) Process(img image.Image, storage *pipeline.Storage) (image.Image, error) {
	storage.Put(config.FilterTextRecognition, &ocr.OCRResult{
		FullText: f.text,
		Regions:  []ocr.TextRegion{{Text: f.text, Confidence: 0.75}},
	})
	return img, nil
}

func TestHandleToolsCall_CaptchaSolve(t *testing.T) {
	s := newTestServer(t)
	q, err := quantize.New(s.cfg.Quantizer)
	if err != nil {
		t.Fatal(err)
	}
	s.chain = pipeline.NewChainWithFilters(s.cfg, nil,
		&pipeline.Quantize{Quantizer: q},
		&pipeline.Upscale{Factor: 2},
		&stubOCR{text: "7K4P"},
	)
	path := createCaptchaFile(t)

	tests := []struct {
		name         string
		expected     string
		wantDistance int
		wantMatch    bool
	}{
		{"match", "7K4P", 0, true},
		{"one off", "7K4R", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sol pipeline.Solution
			decodeTool(t, s, "captcha_solve", map[string]interface{}{"path": path, "expected": tt.expected}, &sol)

			if sol.Text != "7K4P" {
				t.Errorf("text: got %q, want 7K4P", sol.Text)
			}
			if sol.Source != path {
				t.Errorf("source: got %s, want %s", sol.Source, path)
			}
			if len(sol.Palette) != 2 {
				t.Errorf("palette: got %d colors, want 2", len(sol.Palette))
			}
			if sol.Distance == nil || *sol.Distance != tt.wantDistance {
				t.Errorf("distance: got %v, want %d", sol.Distance, tt.wantDistance)
			}
			if sol.Match == nil || *sol.Match != tt.wantMatch {
				t.Errorf("match: got %v, want %v", sol.Match, tt.wantMatch)
			}
		})
	}

	var sol pipeline.Solution
	decodeTool(t, s, "captcha_solve", map[string]interface{}{"path": path}, &sol)
	if sol.Distance != nil || sol.Match != nil {
		t.Error("distance and match should be omitted without an expected answer")
	}
}
