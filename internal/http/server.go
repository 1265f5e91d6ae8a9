package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/fieldserv/backend/internal/auth"
	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/repository"
	"github.com/example/fieldserv/backend/internal/service"
)

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine   *gin.Engine
	users    *repository.UserRepository
	clients  *repository.ClientRepository
	services *repository.ServiceRepository
	schedule *service.ScheduleService
	closure  *service.ClosureService
	secret   string
	tokenTTL time.Duration
}

// NewServer constructs a new API server and registers routes.
func NewServer(
	users *repository.UserRepository,
	clients *repository.ClientRepository,
	services *repository.ServiceRepository,
	schedule *service.ScheduleService,
	closure *service.ClosureService,
	secret string,
	tokenTTL time.Duration,
) *Server {
	router := gin.Default()
	srv := &Server{
		Engine:   router,
		users:    users,
		clients:  clients,
		services: services,
		schedule: schedule,
		closure:  closure,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.POST("/auth/login", s.login)

	admin := api.Group("/", authRequired(s.secret), requireRole(models.RoleAdmin))
	admin.POST("/clients", s.createClient)
	admin.GET("/clients", s.listClients)
	admin.POST("/services", s.createService)
	admin.GET("/services", s.listServices)
	admin.POST("/services/:id/assign", s.assignTechnician)
	admin.POST("/services/:id/expected-amount", s.setExpectedAmount)
	admin.POST("/services/:id/cancel", s.cancelService)

	tech := api.Group("/", authRequired(s.secret), requireRole(models.RoleTechnician))
	tech.GET("/agenda", s.agenda)
	tech.POST("/services/:id/start", s.startService)
	tech.POST("/services/:id/complete", s.completeService)
	tech.GET("/services/:id/closure", s.getServiceForClosure)
	tech.GET("/services/:id/can-close", s.canCloseService)
	tech.POST("/services/:id/close", s.closeService)
}

func (s *Server) login(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.users.FindByEmail(c.Request.Context(), payload.Email)
	if err != nil || !user.Active || !auth.CheckPassword(user.PasswordHash, payload.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := auth.IssueToken(s.secret, user, s.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role, "name": user.Name})
}

func (s *Server) createClient(c *gin.Context) {
	var payload struct {
		Name    string `json:"name" binding:"required"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client := &models.Client{Name: payload.Name, Phone: payload.Phone, Email: payload.Email, Address: payload.Address}
	if err := s.clients.Create(c.Request.Context(), client); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (s *Server) listClients(c *gin.Context) {
	clients, err := s.clients.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (s *Server) createService(c *gin.Context) {
	var payload struct {
		Title          string           `json:"title" binding:"required"`
		Description    string           `json:"description"`
		ScheduledDate  time.Time        `json:"scheduledDate" binding:"required"`
		ClientID       uuid.UUID        `json:"clientId" binding:"required"`
		CategoryID     *uuid.UUID       `json:"categoryId"`
		TechnicianID   *uuid.UUID       `json:"technicianId"`
		ExpectedAmount *decimal.Decimal `json:"expectedAmount"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svc, err := s.schedule.CreateService(c.Request.Context(), service.CreateServiceInput{
		Title:          payload.Title,
		Description:    payload.Description,
		ScheduledDate:  payload.ScheduledDate,
		ClientID:       payload.ClientID,
		CategoryID:     payload.CategoryID,
		TechnicianID:   payload.TechnicianID,
		ExpectedAmount: payload.ExpectedAmount,
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (s *Server) listServices(c *gin.Context) {
	status := models.ServiceStatus(c.Query("status"))
	services, err := s.services.List(c.Request.Context(), status, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) assignTechnician(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		TechnicianID uuid.UUID `json:"technicianId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svc, err := s.schedule.AssignTechnician(c.Request.Context(), id, payload.TechnicianID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) setExpectedAmount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		ExpectedAmount decimal.Decimal `json:"expectedAmount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svc, err := s.schedule.SetExpectedAmount(c.Request.Context(), id, payload.ExpectedAmount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) cancelService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	svc, err := s.schedule.Cancel(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) agenda(c *gin.Context) {
	principal := principalFrom(c)
	var day *time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = &parsed
	}
	services, err := s.services.ListByTechnician(c.Request.Context(), principal.ID, day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) startService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	svc, err := s.schedule.Start(c.Request.Context(), id, principalFrom(c).ID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) completeService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	svc, err := s.schedule.Complete(c.Request.Context(), id, principalFrom(c).ID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) getServiceForClosure(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	svc, err := s.closure.GetServiceForClosure(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) canCloseService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	canClose, reason, err := s.closure.CanCloseService(c.Request.Context(), id, principalFrom(c).ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"canClose": canClose}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) closeService(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		FinalReport string `json:"finalReport" binding:"required"`
		Photos      []struct {
			URL            string `json:"url" binding:"required"`
			TechnicalNotes string `json:"technicalNotes"`
			Order          int    `json:"order"`
		} `json:"photos"`
		SpareParts []struct {
			Name      string          `json:"name" binding:"required"`
			Quantity  int             `json:"quantity" binding:"required,gt=0"`
			UnitPrice decimal.Decimal `json:"unitPrice"`
			Notes     string          `json:"notes"`
		} `json:"spareParts"`
		PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required"`
		AmountPaid    decimal.Decimal      `json:"amountPaid"`
		Notes         string               `json:"notes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := service.CloseServiceInput{
		ServiceID:     id,
		TechnicianID:  principalFrom(c).ID,
		FinalReport:   payload.FinalReport,
		PaymentMethod: payload.PaymentMethod,
		AmountPaid:    payload.AmountPaid,
		Notes:         payload.Notes,
	}
	for _, ph := range payload.Photos {
		in.Photos = append(in.Photos, service.PhotoInput{URL: ph.URL, TechnicalNotes: ph.TechnicalNotes, Order: ph.Order})
	}
	for _, sp := range payload.SpareParts {
		in.SpareParts = append(in.SpareParts, service.SparePartInput{Name: sp.Name, Quantity: sp.Quantity, UnitPrice: sp.UnitPrice, Notes: sp.Notes})
	}

	result := s.closure.CloseService(c.Request.Context(), in)
	if !result.Success {
		c.JSON(statusForError(result.Err), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// statusForError maps core failure categories to transport status codes. The
// core itself never chooses HTTP codes.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrServiceNotFound),
		errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrTechnicianNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotAssignedTechnician):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyClosed),
		errors.Is(err, service.ErrServiceLocked),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingExpectedAmount),
		errors.Is(err, service.ErrInvalidLineItem),
		service.IsInvalidInput(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
