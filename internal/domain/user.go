package domain

import "time"

// User is the slice of the persisted user record the relay needs: identity
// for call offers and the presence bookkeeping it maintains.
type User struct {
	ID             string
	Nombre         string
	FotoPerfil     string
	EstaEnLinea    bool
	UltimaConexion time.Time
}
