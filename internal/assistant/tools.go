package assistant

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// toolDefinitions describes the five operations the oracle may select.
// Argument payloads are revalidated by the orchestrator; the schema is a
// hint to the model, not a trust boundary.
func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		functionTool(OpListDoctors,
			"Fetch all doctors of the clinic.",
			`{"type":"object","properties":{}}`),
		functionTool(OpFilterBySpecialty,
			"Fetch doctors by medical specialty. The specialty may be approximate, e.g. Cardiologist or Orthopedist.",
			`{
				"type": "object",
				"properties": {
					"specialty": {"type": "string", "description": "The medical specialty, e.g. Cardiologist or Neurologist"}
				},
				"required": ["specialty"]
			}`),
		functionTool(OpGetAvailability,
			"Get open appointment slots for a doctor or a specialty, optionally on a given date.",
			`{
				"type": "object",
				"properties": {
					"doctorName": {"type": "string"},
					"specialty": {"type": "string"},
					"date": {"type": "string", "description": "YYYY-MM-DD"},
					"includeBooked": {"type": "boolean"}
				}
			}`),
		functionTool(OpBookAppointment,
			"Book an appointment on an open slot. Provide slotId, or doctorName with date and time range.",
			`{
				"type": "object",
				"properties": {
					"slotId": {"type": "integer"},
					"doctorName": {"type": "string"},
					"date": {"type": "string", "description": "YYYY-MM-DD"},
					"time": {"type": "string", "description": "Slot time range, e.g. 12:00-13:00"},
					"patientName": {"type": "string"},
					"email": {"type": "string"},
					"phone": {"type": "string"}
				},
				"required": ["patientName", "email", "phone"]
			}`),
		functionTool(OpRecommendAlternatives,
			"Recommend alternative open slots near a desired date for a specialty or a doctor's specialty.",
			`{
				"type": "object",
				"properties": {
					"specialty": {"type": "string"},
					"doctorName": {"type": "string"},
					"date": {"type": "string", "description": "YYYY-MM-DD"},
					"time": {"type": "string", "description": "HH:MM"},
					"maxResults": {"type": "integer"}
				},
				"required": ["date"]
			}`),
	}
}

func functionTool(name, description, schema string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}
