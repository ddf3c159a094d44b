package viewmodels

type OrchestrationStarted struct {
	ID                string `json:"id"`
	StatusQueryGetURI string `json:"statusQueryGetUri"`
}
