package pipeline

// State - состояние конечного автомата пайплайна
type State string

// Состояния пайплайна. Failed - поглощающее состояние, достижимое из любого
// активного: после сбоя фазы последующие фазы не выполняются.
const (
	StateIdle         State = "Idle"
	StateExtracting   State = "Extracting"
	StateValidating   State = "Validating"
	StateTransforming State = "Transforming"
	StateLoading      State = "Loading"
	StateCompleted    State = "Completed"
	StateFailed       State = "Failed"
)
