package models

// RefsRequest asks the service to fetch and analyze images by reference.
// One reference yields a single-image report, several yield a batch report.
type RefsRequest struct {
	Refs []string `json:"refs" binding:"required,min=1"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// NotFoundResponse is returned for unknown model ids.
type NotFoundResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// PanelResponse lists the descriptors of a panel.
type PanelResponse struct {
	Set    string            `json:"set"`
	Count  int               `json:"count"`
	Models []ModelDescriptor `json:"models"`
}

// NormalizationReport summarizes the intensity distribution before and after
// equalization.
type NormalizationReport struct {
	MeanBefore     float64 `json:"mean_before"`
	StdDevBefore   float64 `json:"std_dev_before"`
	MeanAfter      float64 `json:"mean_after"`
	StdDevAfter    float64 `json:"std_dev_after"`
	OccupiedBins   int     `json:"occupied_bins"`
	UniformInput   bool    `json:"uniform_input"`
	OriginalWidth  int     `json:"original_width"`
	OriginalHeight int     `json:"original_height"`
}

// Insights are the derived views shared by single and batch reports.
type Insights struct {
	Best                   *ModelScore            `json:"best_model,omitempty"`
	TopModels              []ModelScore           `json:"top_models"`
	Categories             []Category             `json:"categories"`
	CategoryStats          []CategoryStat         `json:"category_stats"`
	ConfusionMatrix        ConfusionMatrix        `json:"confusion_matrix"`
	Metrics                PerformanceMetrics     `json:"metrics"`
	AccuracyVsParams       []AccuracyParamsPoint  `json:"accuracy_vs_params"`
	PredictionDistribution PredictionDistribution `json:"prediction_distribution"`
	FastestModels          []ProcessingTime       `json:"fastest_models"`
}

// SingleReport is the response for one image run against the full panel.
type SingleReport struct {
	Timestamp         string              `json:"timestamp"`
	ProcessingTimeSec float64             `json:"processing_time_sec"`
	NormalizedImage   string              `json:"normalized_image,omitempty"`
	Normalization     NormalizationReport `json:"normalization"`
	Results           []InvocationResult  `json:"results"`
	Insights          Insights            `json:"insights"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// BatchReport is the response for a batch run against the batch panel.
type BatchReport struct {
	Timestamp         string                `json:"timestamp"`
	ProcessingTimeSec float64               `json:"processing_time_sec"`
	Run               *BatchRun             `json:"run"`
	Aggregated        []AggregatedModelStat `json:"aggregated"`
	Insights          Insights              `json:"insights"`
	Errors            []string              `json:"errors,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
}
