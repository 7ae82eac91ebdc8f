package entity

// Roles de operador de la consola de migración.
const (
	RoleAdmin  = "admin"  // lanza y cancela corridas
	RoleViewer = "viewer" // solo consulta
)

// Operator credencial configurada para la consola.
type Operator struct {
	Username     string
	PasswordHash string // bcrypt
	Role         string
}
