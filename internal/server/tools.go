package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func pathProp() map[string]interface{} {
	return prop("string", "Absolute path to the kymograph .tif file")
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// cleanupProps are the velocity cleanup arguments shared by several tools.
func cleanupProps(props map[string]interface{}) map[string]interface{} {
	props["remove_zero"] = prop("boolean", "Replace exact zeros with NaN before other cleanup")
	props["remove_outliers"] = prop("boolean", "Replace outliers with NaN (default from config, true)")
	props["outlier_rule"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"sigma", "mad"},
		"description": "Outlier rule: sigma (mean +/- 2 std) or mad (median +/- 3 scaled MAD)",
	}
	props["median_filter"] = prop("integer", "Odd median filter length, 0 for none")
	props["start_sec"] = prop("number", "Only use samples at or after this time in seconds")
	props["stop_sec"] = prop("number", "Only use samples at or before this time in seconds")
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Loading
		{
			Name:        "kym_load",
			Description: "Load a kymograph image and its Olympus header. Returns size, calibration and intensity statistics. Calibration arguments override the header.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":              pathProp(),
				"seconds_per_line":  prop("number", "Scan line period in seconds (delt)"),
				"microns_per_pixel": prop("number", "Pixel size along the line in microns (delx)"),
				"reload":            prop("boolean", "Drop the cached file and read the image and header again"),
			}, "path"),
		},
		{
			Name:        "kym_header",
			Description: "Read the Olympus .txt header next to a kymograph.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProp(),
			}, "path"),
		},

		// Analysis
		{
			Name:        "kym_analyze",
			Description: "Estimate blood flow velocity over time with a sliding window Radon transform. Results are cached until the window size, pixel range or calibration changes.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":        pathProp(),
				"window_size": prop("integer", "Lines per window, a positive multiple of 4. Default 16"),
				"start_pixel": prop("integer", "First pixel of each line to analyze. Default 0"),
				"stop_pixel":  prop("integer", "Pixel after the last one to analyze. Default full line"),
				"workers":     prop("integer", "Parallel workers. Default CPU count - 1"),
				"save":        prop("boolean", "Also save the analysis CSV next to the image"),
				"store":       prop("boolean", "Also save the analysis to the database, if configured"),
			}, "path"),
		},
		{
			Name:        "kym_velocity",
			Description: "Return the time and velocity (mm/s) series of the last analysis with optional cleanup. NaN values are null.",
			InputSchema: objectSchema(cleanupProps(map[string]interface{}{
				"path":      pathProp(),
				"abs_value": prop("boolean", "Return magnitudes. Default true"),
			}), "path"),
		},
		{
			Name:        "kym_report",
			Description: "Summarize the last analysis: intensity, velocity statistics and NaN counts.",
			InputSchema: objectSchema(cleanupProps(map[string]interface{}{
				"path": pathProp(),
			}), "path"),
		},

		// Persistence
		{
			Name:        "kym_save_analysis",
			Description: "Save the last analysis as CSV in <folder>/<folder>-analysis/, and to the database if configured.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProp(),
			}, "path"),
		},
		{
			Name:        "kym_load_analysis",
			Description: "Load a saved analysis from its CSV, or from the database when analysis_id or latest is given. Fails if the saved calibration differs from one set on kym_load.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":        pathProp(),
				"analysis_id": prop("string", "Database analysis ID"),
				"latest":      prop("boolean", "Load the newest database analysis of this image"),
			}, "path"),
		},
		{
			Name:        "kym_summary_table",
			Description: "Analyze every .tif in a folder and return one report per file. Saved analyses are reused unless reanalyze is set.",
			InputSchema: objectSchema(cleanupProps(map[string]interface{}{
				"folder":      prop("string", "Absolute path to a folder of kymographs"),
				"output":      prop("string", "Optional CSV path for the summary table"),
				"reanalyze":   prop("boolean", "Ignore saved analyses"),
				"save":        prop("boolean", "Save each new analysis CSV"),
				"time_limits": prop("string", "Optional CSV with uniqueFile, startSec and stopSec columns"),
			}), "folder"),
		},

		// Rendering
		{
			Name:        "kym_preview",
			Description: "Render the kymograph as a base64 PNG with time running left to right.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":       pathProp(),
				"start_line": prop("integer", "First line to show. Default 0"),
				"stop_line":  prop("integer", "Line after the last one to show. Default all"),
				"gamma":      prop("number", "Gamma correction, below 1 brightens. Default from config, 1"),
				"colormap": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"gray", "green", "heat", "inverted", "viridis"},
					"description": "Colormap. Default from config, gray",
				},
				"width":  prop("integer", "Output width in pixels; 0 keeps the aspect ratio"),
				"height": prop("integer", "Output height in pixels; 0 keeps the aspect ratio"),
			}, "path"),
		},
		{
			Name:        "kym_plot_velocity",
			Description: "Plot velocity against time as a PNG (returned as base64 or written to output) or an interactive HTML chart (written to output).",
			InputSchema: objectSchema(cleanupProps(map[string]interface{}{
				"path": pathProp(),
				"format": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"png", "html"},
					"description": "Output format. Default png",
				},
				"output": prop("string", "Optional output file path; required for html"),
			}), "path"),
		},

		// Database
		{
			Name:        "kym_store_list",
			Description: "List analyses saved in the database, newest first.",
			InputSchema: objectSchema(map[string]interface{}{
				"folder": prop("string", "Only list analyses of images in this folder name"),
			}),
		},
		{
			Name:        "kym_store_get",
			Description: "Get one database analysis and its stored report, by ID or as the newest analysis of an image path.",
			InputSchema: objectSchema(map[string]interface{}{
				"analysis_id": prop("string", "Database analysis ID"),
				"path":        prop("string", "Image path; returns its newest analysis"),
			}),
		},
		{
			Name:        "kym_store_delete",
			Description: "Delete a database analysis and its samples.",
			InputSchema: objectSchema(map[string]interface{}{
				"analysis_id": prop("string", "Database analysis ID"),
			}, "analysis_id"),
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
