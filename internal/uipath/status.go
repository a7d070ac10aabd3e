package uipath

import "strings"

// Outcome — классификация элемента очереди.
type Outcome string

const (
	// OutcomeNoReference — reference не задан, элемент не создавался.
	OutcomeNoReference Outcome = "NO_REFERENCE"

	// OutcomeNotFound — элемента с таким reference нет в очереди.
	OutcomeNotFound Outcome = "NOT_FOUND"

	// OutcomeInProgress — элемент ещё обрабатывается роботом.
	OutcomeInProgress Outcome = "IN_PROGRESS"

	// OutcomeSuccess — элемент обработан успешно.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeFailure — элемент обработан с ошибкой или брошен.
	OutcomeFailure Outcome = "FAILURE"

	// OutcomeError — статус элемента не распознан.
	OutcomeError Outcome = "ERROR"
)

// Статусы элементов очереди Orchestrator.
const (
	StatusNew        = "New"
	StatusInProgress = "InProgress"
	StatusRetried    = "Retried"
	StatusSuccessful = "Successful"
	StatusFailed     = "Failed"
	StatusAbandoned  = "Abandoned"
	StatusDeleted    = "Deleted"
)

// Classify переводит статус элемента очереди в Outcome.
func Classify(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "new", "inprogress", "retried":
		return OutcomeInProgress
	case "successful":
		return OutcomeSuccess
	case "failed", "abandoned", "deleted":
		return OutcomeFailure
	default:
		return OutcomeError
	}
}
