// Package panelserver keeps each tenant's registry of upstream panel
// server names. Clients and reseller rows reference servers by name; the
// registry is what feeds the pick lists in the panel.
package panelserver

import (
	"errors"
	"time"
)

// Errors
var (
	ErrServerNotFound = errors.New("panelserver: not found")
	ErrNameTaken      = errors.New("panelserver: name already registered")
	ErrNameRequired   = errors.New("panelserver: name required")
)

// Server is one registered upstream server name. Names are unique per
// tenant; two tenants may register the same name independently.
type Server struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
