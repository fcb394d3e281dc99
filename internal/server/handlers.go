package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/captcha-tools-mcp/internal/imaging"
	"github.com/ironsheep/captcha-tools-mcp/internal/ocr"
	"github.com/ironsheep/captcha-tools-mcp/internal/quantize"
	"github.com/ironsheep/captcha-tools-mcp/internal/segment"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_quantize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate imaging/quantize/ocr/pipeline function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Region Operations
	case "image_crop":
		return s.handleImageCrop(args)

	// Color Operations
	case "image_sample_color":
		return s.handleImageSampleColor(args)
	case "image_dominant_colors":
		return s.handleImageDominantColors(args)
	case "image_quantize":
		return s.handleImageQuantize(args)
	case "image_segment":
		return s.handleImageSegment(args)

	// OCR Operations
	case "image_ocr_full":
		return s.handleImageOCRFull(args)
	case "image_ocr_region":
		return s.handleImageOCRRegion(args)

	// Solving
	case "captcha_solve":
		return s.handleCaptchaSolve(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Region Operation Handlers ===

type imageCropArgs struct {
	Path string `json:"path"`
	imaging.Region
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.Region, a.Scale)
}

// === Color Operation Handlers ===

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

type imageDominantColorsArgs struct {
	Path   string          `json:"path"`
	Count  int             `json:"count"`
	Region *imaging.Region `json:"region,omitempty"`
}

func (s *Server) handleImageDominantColors(args json.RawMessage) (interface{}, error) {
	var a imageDominantColorsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.DominantColors(img, a.Count, a.Region)
}

type imageQuantizeArgs struct {
	Path          string   `json:"path"`
	Colorspace    string   `json:"colorspace"`
	Metric        string   `json:"metric"`
	Threshold1    *float64 `json:"threshold1"`
	Threshold2    *float64 `json:"threshold2"`
	MaxIterations *int     `json:"max_iterations"`
	OutputPath    string   `json:"output_path"`
}

// config overlays the arguments on the server defaults.
func (a *imageQuantizeArgs) config(base quantize.Config) quantize.Config {
	cfg := base
	if a.Colorspace != "" {
		cfg.Colorspace = a.Colorspace
	}
	if a.Metric != "" {
		cfg.Metric = a.Metric
	}
	if a.Threshold1 != nil {
		cfg.Threshold1 = *a.Threshold1
	}
	if a.Threshold2 != nil {
		cfg.Threshold2 = *a.Threshold2
	}
	if a.MaxIterations != nil {
		cfg.MaxIterations = *a.MaxIterations
	}
	return cfg
}

// QuantizeResult is the image_quantize tool output.
type QuantizeResult struct {
	*imaging.EncodedImage
	Colorspace   string                  `json:"colorspace"`
	Metric       string                  `json:"metric"`
	ColorsBefore int                     `json:"colors_before"`
	ColorsAfter  int                     `json:"colors_after"`
	Seeds        int                     `json:"seeds"`
	Iterations   int                     `json:"iterations"`
	Converged    bool                    `json:"converged"`
	Palette      []quantize.ClusterColor `json:"palette"`
	OutputPath   string                  `json:"output_path,omitempty"`
}

func (s *Server) handleImageQuantize(args json.RawMessage) (interface{}, error) {
	var a imageQuantizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	cfg := a.config(s.cfg.Quantizer)
	q, err := quantize.New(cfg, quantize.WithLogger(s.logger.Named("quantize")))
	if err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := q.Quantize(imaging.ToRGB(img))
	if err != nil {
		return nil, err
	}

	encoded, err := imaging.EncodePNG(res.Image)
	if err != nil {
		return nil, err
	}
	if a.OutputPath != "" {
		if err := imaging.Save(res.Image, a.OutputPath); err != nil {
			return nil, err
		}
	}

	return &QuantizeResult{
		EncodedImage: encoded,
		Colorspace:   cfg.Colorspace,
		Metric:       cfg.MetricName(),
		ColorsBefore: len(res.Histogram.Samples),
		ColorsAfter:  len(res.Clusters),
		Seeds:        res.Seeds,
		Iterations:   res.Iterations,
		Converged:    res.Converged,
		Palette:      q.Palette(res),
		OutputPath:   a.OutputPath,
	}, nil
}

type imageSegmentArgs struct {
	Path        string `json:"path"`
	Quantize    bool   `json:"quantize"`
	MaxWidth    *int   `json:"max_width"`
	MaxHeight   *int   `json:"max_height"`
	LetterDelta *int   `json:"letter_delta"`
	WordDelta   *int   `json:"word_delta"`
	MinWordArea *int   `json:"min_word_area"`

	MaxVerticalHeight *int     `json:"max_vertical_height"`
	MinVFactor        *float64 `json:"min_vfactor"`
}

// options overlays the arguments on the server segment settings.
func (a *imageSegmentArgs) options(base segment.Options) segment.Options {
	opts := base
	for _, o := range []struct {
		arg *int
		dst *int
	}{
		{a.MaxWidth, &opts.MaxWidth},
		{a.MaxHeight, &opts.MaxHeight},
		{a.LetterDelta, &opts.LetterDelta},
		{a.WordDelta, &opts.WordDelta},
		{a.MinWordArea, &opts.MinWordArea},
		{a.MaxVerticalHeight, &opts.MaxVerticalHeight},
	} {
		if o.arg != nil {
			*o.dst = *o.arg
		}
	}
	if a.MinVFactor != nil {
		opts.MinVFactor = *a.MinVFactor
	}
	return opts
}

// SegmentResult is the image_segment tool output.
type SegmentResult struct {
	Width      int                     `json:"width"`
	Height     int                     `json:"height"`
	Quantized  bool                    `json:"quantized"`
	Segments   int                     `json:"segments"`
	Colors     []segment.ColorSegments `json:"colors"`
	Candidates []segment.Group         `json:"candidates"`

	// Graphical lists the segments that are neither text nor letter holes.
	Graphical []int `json:"graphical"`
}

func (s *Server) handleImageSegment(args json.RawMessage) (interface{}, error) {
	var a imageSegmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := a.options(s.cfg.Segment)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segment options: %w", err)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Quantize {
		q, err := quantize.New(s.cfg.Quantizer, quantize.WithLogger(s.logger.Named("quantize")))
		if err != nil {
			return nil, err
		}
		res, err := q.Quantize(imaging.ToRGB(img))
		if err != nil {
			return nil, err
		}
		img = res.Image
	}

	seg := segment.Segmentize(img)
	candidates := segment.TextCandidates(seg, opts)
	if candidates == nil {
		candidates = []segment.Group{}
	}
	graphical := seg.Graphical(opts, candidates)
	if graphical == nil {
		graphical = []int{}
	}
	return &SegmentResult{
		Width:      seg.Rect.Dx(),
		Height:     seg.Rect.Dy(),
		Quantized:  a.Quantize,
		Segments:   len(seg.Segments),
		Colors:     seg.Colors(),
		Candidates: candidates,
		Graphical:  graphical,
	}, nil
}

// === OCR Operation Handlers ===

type ocrArgs struct {
	Language    string  `json:"language"`
	Whitelist   *string `json:"whitelist"`
	PageSegMode *int    `json:"page_seg_mode"`
}

// options overlays the arguments on the server OCR settings.
func (a *ocrArgs) options(base ocr.Options) ocr.Options {
	opts := base
	if a.Language != "" {
		opts.Language = a.Language
	}
	if a.Whitelist != nil {
		opts.Whitelist = *a.Whitelist
	}
	if a.PageSegMode != nil {
		opts.PageSegMode = *a.PageSegMode
	}
	return opts
}

type imageOCRFullArgs struct {
	Path string `json:"path"`
	ocrArgs
}

func (s *Server) handleImageOCRFull(args json.RawMessage) (interface{}, error) {
	var a imageOCRFullArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return ocr.ExtractText(a.Path, a.options(s.cfg.OCR))
}

type imageOCRRegionArgs struct {
	Path string `json:"path"`
	imaging.Region
	ocrArgs
}

func (s *Server) handleImageOCRRegion(args json.RawMessage) (interface{}, error) {
	var a imageOCRRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return ocr.ExtractTextFromRegion(img, a.Rect(), a.options(s.cfg.OCR))
}

// === Solving Handlers ===

type captchaSolveArgs struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
}

func (s *Server) handleCaptchaSolve(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a captchaSolveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.chain.Solve(ctx, a.Path, img, a.Expected)
}
