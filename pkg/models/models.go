// Package models defines the entities persisted by the discovery pipeline:
// solutions, jobs, plans, the asset/edge catalog, and audit records.
package models

import "time"

// SolutionStatus is the lifecycle status of a Solution.
type SolutionStatus string

// Solution statuses.
const (
	SolutionPending    SolutionStatus = "PENDING"
	SolutionQueued     SolutionStatus = "QUEUED"
	SolutionProcessing SolutionStatus = "PROCESSING"
	SolutionReady      SolutionStatus = "READY"
	SolutionError      SolutionStatus = "ERROR"
)

// Solution is a project/workspace that owns one or more discovery jobs.
type Solution struct {
	ID          string
	DisplayName string
	StoragePath string
	Status      SolutionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStatus is the lifecycle status of a Job.
type JobStatus string

// Job statuses.
const (
	JobQueued         JobStatus = "queued"
	JobRunning        JobStatus = "running"
	JobPlanningReady  JobStatus = "planning_ready"
	JobCompleted      JobStatus = "completed"
	JobFailed         JobStatus = "failed"
	JobCancelled      JobStatus = "cancelled"
)

// Job is a single discovery run over a solution.
type Job struct {
	ID                string
	ProjectID         string
	Status            JobStatus
	CurrentStage      string
	ProgressPct       int
	PlanID            *string
	RequiresApproval  bool
	StartedAt         *time.Time
	FinishedAt        *time.Time
	ErrorMessage      *string
	ErrorDetails      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// QueueStatus is the lifecycle status of a queue entry.
type QueueStatus string

// Queue entry statuses.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// QueueEntry is a claimable token referencing a job.
type QueueEntry struct {
	ID        string
	JobID     string
	Status    QueueStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanStatus is the lifecycle status of a Plan.
type PlanStatus string

// Plan statuses.
const (
	PlanDraft      PlanStatus = "draft"
	PlanReady      PlanStatus = "ready"
	PlanApproved   PlanStatus = "approved"
	PlanRejected   PlanStatus = "rejected"
	PlanSuperseded PlanStatus = "superseded"
)

// PlanMode selects the cost/depth profile for a run.
type PlanMode string

// Plan modes.
const (
	ModeLowCost  PlanMode = "low_cost"
	ModeDeepScan PlanMode = "deep_scan"
	ModeStandard PlanMode = "standard"
)

// AreaName buckets plan items by processing phase.
type AreaName string

// Area names, in execution order.
const (
	AreaFoundation AreaName = "FOUNDATION"
	AreaPackages   AreaName = "PACKAGES"
	AreaDocs       AreaName = "DOCS"
	AreaAux        AreaName = "AUX"
)

// areaOrder fixes the default (area.order_index) assigned by the planner.
var areaOrder = map[AreaName]int{
	AreaFoundation: 0,
	AreaPackages:   1,
	AreaDocs:       2,
	AreaAux:        3,
}

// OrderIndex returns the default ordering position for an area.
func (a AreaName) OrderIndex() int {
	return areaOrder[a]
}

// Strategy picks how a plan item is processed.
type Strategy string

// Strategies.
const (
	StrategyParserOnly     Strategy = "PARSER_ONLY"
	StrategyParserPlusLLM  Strategy = "PARSER_PLUS_LLM"
	StrategyLLMOnly        Strategy = "LLM_ONLY"
	StrategyVLMExtract     Strategy = "VLM_EXTRACT"
	StrategySkip           Strategy = "SKIP"
)

// RecommendedAction is the policy engine's verdict for a file.
type RecommendedAction string

// Recommended actions.
const (
	ActionProcess RecommendedAction = "PROCESS"
	ActionSkip    RecommendedAction = "SKIP"
	ActionReview  RecommendedAction = "REVIEW"
)

// ItemStatus is the lifecycle status of a plan item.
type ItemStatus string

// Plan item statuses.
const (
	ItemPending   ItemStatus = "pending"
	ItemRunning   ItemStatus = "running"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// Estimate is the cost/time/token projection for a plan item.
type Estimate struct {
	Tokens      int64
	CostUSD     float64
	TimeSeconds float64
}

// Plan is the human-approvable execution intent for a job.
type Plan struct {
	ID             string
	JobID          string
	Status         PlanStatus
	Mode           PlanMode
	TotalFiles     int
	TotalCostEst   float64
	TotalTimeEst   float64
	Areas          []*PlanArea
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlanArea groups plan items by processing phase.
type PlanArea struct {
	ID         string
	PlanID     string
	Name       AreaName
	OrderIndex int
	Items      []*PlanItem
}

// PlanItem is a single file's processing intent within a plan area.
type PlanItem struct {
	ID                string
	AreaID            string
	Path              string
	FileHash          string
	SizeBytes         int64
	FileType          string
	Classifier        string
	Strategy          Strategy
	RecommendedAction RecommendedAction
	Enabled           bool
	OrderIndex        int
	Estimate          Estimate
	Status            ItemStatus
}

// AssetType classifies a catalog Asset.
type AssetType string

// Common asset types. COMPONENT_* types are synthesized as
// "COMPONENT_" + PackageComponent.Type (see catalog sync).
const (
	AssetTable           AssetType = "TABLE"
	AssetView            AssetType = "VIEW"
	AssetFile            AssetType = "FILE"
	AssetPipeline        AssetType = "PIPELINE"
	AssetPackage         AssetType = "PACKAGE"
	AssetProcess         AssetType = "PROCESS"
	AssetScript          AssetType = "SCRIPT"
	AssetStoredProcedure AssetType = "STORED_PROCEDURE"
)

// Asset is a logical data object discovered in the artifact.
type Asset struct {
	ID            string
	ProjectID     string
	AssetType     AssetType
	NameDisplay   string
	CanonicalName string
	System        string
	Tags          map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EdgeType classifies a typed relationship between two assets.
type EdgeType string

// Edge types.
const (
	EdgeReadsFrom        EdgeType = "READS_FROM"
	EdgeWritesTo         EdgeType = "WRITES_TO"
	EdgeCreates          EdgeType = "CREATES"
	EdgeDependsOn        EdgeType = "DEPENDS_ON"
	EdgeContains         EdgeType = "CONTAINS"
	EdgeDetailedLineage  EdgeType = "DETAILED_LINEAGE"
)

// Edge is a typed relationship between two assets.
type Edge struct {
	ID           string
	ProjectID    string
	FromAssetID  string
	ToAssetID    string
	EdgeType     EdgeType
	Confidence   float64
	IsHypothesis bool
	ExtractorID  string
	Rationale    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EvidenceKind classifies the source of a supporting excerpt.
type EvidenceKind string

// Evidence kinds.
const (
	EvidenceCode        EvidenceKind = "code"
	EvidenceXML         EvidenceKind = "xml"
	EvidenceLog         EvidenceKind = "log"
	EvidenceConfig      EvidenceKind = "config"
	EvidenceRegexMatch  EvidenceKind = "regex_match"
	EvidenceSQLGlotParse EvidenceKind = "sqlglot_parse"
)

// Locator pinpoints where a snippet of evidence was found.
type Locator struct {
	File      string
	LineStart *int
	LineEnd   *int
	XPath     *string
	ByteStart *int
	ByteEnd   *int
}

// Evidence is a supporting excerpt for an edge.
type Evidence struct {
	ID        string
	ProjectID string
	FilePath  string
	Kind      EvidenceKind
	Locator   Locator
	Snippet   string
	Hash      *string
	CreatedAt time.Time
}

// ComponentType classifies a PackageComponent.
type ComponentType string

// Component types.
const (
	ComponentSource    ComponentType = "SOURCE"
	ComponentSink      ComponentType = "SINK"
	ComponentTransform ComponentType = "TRANSFORM"
	ComponentContainer ComponentType = "CONTAINER"
)

// Package is an ETL unit (e.g. a DTSX) that owns ordered components.
type Package struct {
	ID         string
	ProjectID  string
	Name       string
	SourceFile string
	Components []*PackageComponent
}

// PackageComponent is one ordered step of a Package.
type PackageComponent struct {
	ID          string
	PackageID   string
	Name        string
	Type        ComponentType
	OrderIndex  int
}

// TransformOperation classifies a TransformationIR row.
type TransformOperation string

// Transform operations.
const (
	OpRead      TransformOperation = "READ"
	OpWrite     TransformOperation = "WRITE"
	OpSelect    TransformOperation = "SELECT"
	OpFilter    TransformOperation = "FILTER"
	OpJoin      TransformOperation = "JOIN"
	OpAggregate TransformOperation = "AGGREGATE"
	OpLookup    TransformOperation = "LOOKUP"
	OpDerive    TransformOperation = "DERIVE"
	OpSCD       TransformOperation = "SCD"
	OpSQLQuery  TransformOperation = "SQL_QUERY"
)

// TransformationIR is one emitted transformation step of a component.
type TransformationIR struct {
	ID                 string
	ComponentID        string
	Operation          TransformOperation
	SourceComponentID  *string
	Detail             map[string]any
}

// ColumnLineage records source-to-target column-level lineage.
type ColumnLineage struct {
	ID                 string
	ProjectID          string
	SourceAssetID      *string
	SourceColumn       string
	TargetAssetID      *string
	TargetColumn       string
	TransformationRule *string
	Confidence         float64

	// SourceComponentID/TargetComponentID are transient extractor-assigned
	// hints (not persisted) letting catalog sync resolve an endpoint through
	// the component->asset bridge map when the extractor couldn't yet know
	// the final asset UUID.
	SourceComponentID *string
	TargetComponentID *string
}

// ErrorKind enumerates the error taxonomy raised across the pipeline.
type ErrorKind string

// Error kinds.
const (
	ErrIngest           ErrorKind = "ingest_error"
	ErrPlanner          ErrorKind = "planner_error"
	ErrLLM              ErrorKind = "llm_error"
	ErrJSONParse        ErrorKind = "json_parse_error"
	ErrValidation       ErrorKind = "validation_error"
	ErrFallbackExhausted ErrorKind = "fallback_exhausted"
	ErrModelExecution   ErrorKind = "model_execution_error"
	ErrActionExecution  ErrorKind = "action_execution_error"
)

// FileLogStatus is the lifecycle status of a FileProcessingLog row.
type FileLogStatus string

// File processing log statuses.
const (
	LogPending          FileLogStatus = "pending"
	LogSuccess          FileLogStatus = "success"
	LogFailed           FileLogStatus = "failed"
	LogFallbackExhausted FileLogStatus = "fallback_exhausted"
)

// FileProcessingLog is one row per (job, file, action).
type FileProcessingLog struct {
	ID                string
	JobID             string
	FilePath          string
	ActionName        string
	StrategyUsed      Strategy
	ModelProvider     *string
	ModelUsed         *string
	FallbackUsed      bool
	FallbackChain     []string
	Status            FileLogStatus
	TokensIn          int64
	TokensOut         int64
	CostEstimateUSD   float64
	LatencyMS         int64
	ErrorType         *ErrorKind
	ErrorMessage      *string
	RetryCount        int
	NodesExtracted    int
	EdgesExtracted    int
	EvidencesExtracted int
	ResultHash        *string
	CreatedAt         time.Time
}

// AuditMetrics summarizes catalog coverage at a point in time.
type AuditMetrics struct {
	TotalAssets         int
	TotalRelationships  int
	CoverageScore       float64
	AvgConfidence       float64
	HypothesisRatio     float64
}

// AuditSnapshot is a point-in-time coverage report for a solution.
type AuditSnapshot struct {
	ID              string
	ProjectID       string
	JobID           string
	Metrics         AuditMetrics
	Gaps            []string
	Recommendations []string
	CreatedAt       time.Time
}

// PromptLayerType classifies a reusable prompt text block.
type PromptLayerType string

// Prompt layer types.
const (
	LayerBase     PromptLayerType = "BASE"
	LayerDomain   PromptLayerType = "DOMAIN"
	LayerOrg      PromptLayerType = "ORG"
	LayerSolution PromptLayerType = "SOLUTION"
	LayerReasoner PromptLayerType = "REASONER"
)

// PromptLayer is a named, reusable text block of a given layer type.
type PromptLayer struct {
	ID        string
	Name      string
	LayerType PromptLayerType
	Content   string
}

// ActionPromptConfig maps an action name to zero or one layer of each scope.
type ActionPromptConfig struct {
	ActionName string
	BaseID     *string
	DomainID   *string
	OrgID      *string
	ReasonerID *string
}

// ProjectActionConfig overrides the SOLUTION layer per project.
type ProjectActionConfig struct {
	ProjectID  string
	ActionName string
	SolutionID *string
}

// ExtractionResult is the uniform output of any extractor (deterministic or LLM).
type ExtractionResult struct {
	Meta       map[string]any
	Nodes      []ExtractedNode
	Edges      []ExtractedEdge
	Evidences  []ExtractedEvidence
	Assumptions []string
}

// ExtractedNode is a raw, pre-catalog-sync asset candidate.
type ExtractedNode struct {
	NodeID     string
	NodeType   string
	Name       string
	System     string
	Attributes map[string]any
}

// ExtractedEdge is a raw, pre-catalog-sync relationship candidate.
type ExtractedEdge struct {
	FromNodeID  string
	ToNodeID    string
	EdgeType    EdgeType
	Confidence  float64
	IsHypothesis bool
	ExtractorID string
	Rationale   string
	EvidenceRef *string
}

// ExtractedEvidence is a raw, pre-catalog-sync evidence candidate.
type ExtractedEvidence struct {
	RefID    string
	FilePath string
	Kind     EvidenceKind
	Locator  Locator
	Snippet  string
	Hash     *string
}

// DeepDiveResult is the output of a deep-dive pass (package/component/lineage).
type DeepDiveResult struct {
	Package        *Package
	Transformations []TransformationIR
	ColumnLineages  []ColumnLineage
}
