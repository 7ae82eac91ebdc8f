package dto

// Límites de listados de resultados y cola de enriquecimiento.
const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// PageRequest ventana limit/offset de un listado.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// DefaultPage acota Limit a 1..500 (50 si no viene) y Offset a >= 0.
func (p *PageRequest) DefaultPage() {
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageLimit
	case p.Limit > maxPageLimit:
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de la ventana devuelta.
// Total solo se informa cuando el listado lo conoce; HasMore se deduce de lo devuelto.
type PageResponse struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total,omitempty"`
	HasMore bool `json:"has_more"`
}

// NewPageResponse arma los metadatos a partir de la ventana pedida y las filas obtenidas.
// total < 0 indica que no se conoce.
func NewPageResponse(p PageRequest, returned, total int) PageResponse {
	resp := PageResponse{Limit: p.Limit, Offset: p.Offset}
	if total >= 0 {
		resp.Total = total
		resp.HasMore = p.Offset+returned < total
		return resp
	}
	resp.HasMore = returned == p.Limit
	return resp
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
