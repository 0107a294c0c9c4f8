package engine

import "github.com/cuemby/strata/pkg/types"

// createIndexPayload is types.Task.Payload for TaskKindIndexCreation.
type createIndexPayload struct {
	PrimaryKey string `json:"primary_key,omitempty"`
}

// updateIndexPayload is types.Task.Payload for TaskKindIndexUpdate.
type updateIndexPayload struct {
	PrimaryKey string `json:"primary_key"`
}

// swapIndexesPayload is types.Task.Payload for TaskKindIndexSwap.
type swapIndexesPayload struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Document add/update methods: replaceDocuments overwrites a document's
// content wholesale, updateDocuments merges incoming fields onto whatever
// document already exists under the same primary key.
const (
	documentMethodReplace = "replaceDocuments"
	documentMethodUpdate  = "updateDocuments"
)

// addOrUpdateDocumentsPayload is types.Task.Payload for
// TaskKindDocumentAdditionOrUpdate.
type addOrUpdateDocumentsPayload struct {
	Documents []types.Document `json:"documents"`
	Method    string           `json:"method,omitempty"`
}

// deleteDocumentsPayload is types.Task.Payload for TaskKindDocumentDeletion.
type deleteDocumentsPayload struct {
	ExternalIDs []string `json:"external_ids"`
}

// editDocumentsPayload is types.Task.Payload for TaskKindDocumentEdition: a
// fixed field=value assignment applied to the named documents, the
// FieldSetEditor stand-in for a scripting engine.
type editDocumentsPayload struct {
	ExternalIDs []string    `json:"external_ids"`
	Field       string      `json:"field"`
	Value       interface{} `json:"value"`
}

// updateSettingsPayload is types.Task.Payload for TaskKindSettingsUpdate.
type updateSettingsPayload struct {
	Settings types.Settings `json:"settings"`
}
