package api

import (
	"net/http"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// ClientHandler serves owner-scoped client CRUD.
type ClientHandler struct {
	clients domain.ClientService
}

func NewClientHandler(clients domain.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

type createClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
	Company string `json:"company" validate:"max=200"`
	TaxID   string `json:"tax_id" validate:"max=50"`
	Notes   string `json:"notes" validate:"max=2000"`
}

type updateClientRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	Email   *string `json:"email" validate:"omitempty,email,max=254"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Company *string `json:"company" validate:"omitempty,max=200"`
	TaxID   *string `json:"tax_id" validate:"omitempty,max=50"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

// clientFields are the only client keys a body may carry. Ownership and
// timestamps are never client-settable.
var clientFields = domain.ClientMutableFields

// List handles GET /api/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	list, err := h.clients.ListClients(r.Context(), ownerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Client{}
	}
	handler.JSON(w, http.StatusOK, list)
}

// Create handles POST /api/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	var req createClientRequest
	if err := decode(r, "client.create", clientFields, nil, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	c, err := h.clients.CreateClient(r.Context(), domain.CreateClientParams{
		OwnerID: ownerID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Company: req.Company,
		TaxID:   req.TaxID,
		Notes:   req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, c)
}

// Get handles GET /api/clients/{id}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	c, err := h.clients.GetClient(r.Context(), ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, c)
}

// Update handles PUT /api/clients/{id}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	var req updateClientRequest
	if err := decode(r, "client.update", clientFields, nil, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	c, err := h.clients.UpdateClient(r.Context(), ownerID, id, domain.ClientPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Company: req.Company,
		TaxID:   req.TaxID,
		Notes:   req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/clients/{id}
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	if err := h.clients.DeleteClient(r.Context(), ownerID, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
