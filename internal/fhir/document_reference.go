package fhir

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// WrappedContentType — тип, под которым объявляется файл, упакованный в DocumentReference.
const WrappedContentType = "application/fhir+json;fhirVersion=4.0.1"

var compliantTypes = map[string]struct{}{
	"application/smart-health-card": {},
	"application/smart-api-access":  {},
	"application/fhir+json":         {},
}

// IsCompliantContentType сообщает, можно ли отдавать содержимое в манифесте как есть.
// Параметры после ";" не учитываются.
func IsCompliantContentType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	_, ok := compliantTypes[strings.ToLower(strings.TrimSpace(base))]
	return ok
}

type attachment struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	Title       string `json:"title,omitempty"`
}

type documentContent struct {
	Attachment attachment `json:"attachment"`
}

type documentReference struct {
	ResourceType string            `json:"resourceType"`
	Status       string            `json:"status"`
	Content      []documentContent `json:"content"`
}

// WrapInDocumentReference упаковывает файл в ресурс DocumentReference с вложением в base64.
func WrapInDocumentReference(data []byte, contentType, fileName string) ([]byte, error) {
	doc := documentReference{
		ResourceType: "DocumentReference",
		Status:       "current",
		Content: []documentContent{{
			Attachment: attachment{
				ContentType: contentType,
				Data:        base64.StdEncoding.EncodeToString(data),
				Title:       fileName,
			},
		}},
	}
	return json.Marshal(doc)
}
