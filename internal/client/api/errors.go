package api

import (
	"errors"
	"fmt"
)

// ErrNoSession indica ausência de tokens no estado persistido
var ErrNoSession = errors.New("no session")

// Error carrega o status HTTP e a mensagem devolvida pelo backend.
// Permite aos controllers distinguir negação de regra de negócio
// (mensagem legível) de falha de transporte.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
}
