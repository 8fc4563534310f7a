package dto

import "encoding/json"

// Envelope é o formato padrão de resposta do backend.
// Toda rota devolve {data, message, statusCode}; message é "SUCCESS" em caso
// de sucesso ou um texto de negação/erro legível.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
}

// Decode desserializa o campo data no destino. Data nulo não é erro:
// o chamador decide o que fazer com um payload vazio.
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, dst)
}

// HasData informa se o envelope carrega um payload não nulo.
func (e Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}
