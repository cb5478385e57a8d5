// Package web provides API routes for the web server.
package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HuellitasApp/HuellitasGo/internal/pets"
	"github.com/HuellitasApp/HuellitasGo/internal/premium"
	"github.com/HuellitasApp/HuellitasGo/pkg/database"
	"github.com/HuellitasApp/HuellitasGo/pkg/models"
	"github.com/HuellitasApp/HuellitasGo/pkg/mqtt"
	"github.com/HuellitasApp/HuellitasGo/pkg/notify"
	"github.com/HuellitasApp/HuellitasGo/pkg/session"
)

// Maximum accepted document upload size
const maxDocumentSize = 10 << 20 // 10 MB

// API bundles the application services exposed over HTTP
type API struct {
	Session  *session.Session
	Users    *database.UserStore
	Engine   *premium.Engine
	Registry *pets.Registry
	Hub      *notify.Hub
}

// SetupAPIRoutes sets up the API routes
func SetupAPIRoutes(s *Server, a *API) {
	api := s.Group("/api")
	{
		api.GET("/status", a.statusHandler)
		api.GET("/health", healthHandler)

		auth := api.Group("/auth")
		{
			auth.POST("/login", a.loginHandler)
			auth.POST("/logout", a.logoutHandler)
			auth.GET("/me", a.meHandler)
			auth.PUT("/profile", a.updateProfileHandler)
		}

		api.GET("/partners", a.partnersHandler)
		api.GET("/discounts", a.discountsHandler)

		prem := api.Group("/premium")
		{
			prem.POST("/activate", a.activatePremiumHandler)
			prem.GET("/claims", a.claimsHandler)
			prem.POST("/claims", a.claimDiscountHandler)
			prem.POST("/claims/:id/use", a.useClaimHandler)
			prem.GET("/stats", a.statsHandler)
		}

		petsGroup := api.Group("/pets")
		{
			petsGroup.GET("", a.listPetsHandler)
			petsGroup.POST("", a.addPetHandler)
			petsGroup.GET("/:id", a.getPetHandler)
			petsGroup.PUT("/:id", a.updatePetHandler)
			petsGroup.DELETE("/:id", a.deletePetHandler)

			petsGroup.POST("/:id/vaccines", a.addVaccineHandler)
			petsGroup.POST("/:id/diseases", a.addDiseaseHandler)
			petsGroup.POST("/:id/treatments", a.addTreatmentHandler)

			petsGroup.POST("/:id/documents", a.uploadDocumentHandler)
			petsGroup.DELETE("/:id/documents/:docId", a.deleteDocumentHandler)
		}

		api.GET("/vaccines/upcoming", a.upcomingVaccinesHandler)

		api.GET("/events/ws", a.eventsHandler)
	}
}

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, premium.ErrNotAuthenticated), errors.Is(err, pets.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, premium.ErrPremiumRequired):
		return http.StatusForbidden
	case errors.Is(err, premium.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, pets.ErrPetNotFound),
		errors.Is(err, pets.ErrDocumentNotFound),
		errors.Is(err, database.ErrClaimNotFound),
		errors.Is(err, database.ErrProfileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// healthHandler returns a simple health check response
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Huellitas Go is running",
	})
}

// statusHandler returns the database, broker and hub status
func (a *API) statusHandler(c *gin.Context) {
	db := database.Get()
	dbStatus, dbOnline := db.GetStatus()

	mqttOnline := false
	if mc := mqtt.Get(); mc != nil {
		mqttOnline = mc.IsConnected()
	}

	clients := 0
	if a.Hub != nil {
		clients = a.Hub.ClientCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"database": gin.H{
			"status":   dbStatus,
			"isOnline": dbOnline,
		},
		"mqtt": gin.H{
			"isOnline": mqttOnline,
		},
		"notifications": gin.H{
			"clients": clients,
		},
	})
}

// Auth

type loginRequest struct {
	UID   string `json:"uid" binding:"required"`
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

// loginHandler opens a session for an identity already verified by the
// identity provider and loads or creates its profile
func (a *API) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := a.Users.EnsureProfile(c.Request.Context(), req.UID, req.Email, req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	a.Session.SignIn(session.User{UID: req.UID, Email: req.Email, Name: req.Name}, *profile)

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// logoutHandler closes the current session
func (a *API) logoutHandler(c *gin.Context) {
	a.Session.SignOut()
	c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada"})
}

// meHandler returns the session identity, profile and premium state
func (a *API) meHandler(c *gin.Context) {
	user := a.Session.User()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": premium.ErrNotAuthenticated.Error()})
		return
	}

	profile := a.Session.Profile()

	resp := gin.H{
		"user":            user,
		"profile":         profile,
		"isPremiumActive": premium.IsPremiumActive(profile),
	}
	if days, ok := premium.DaysUntilExpiry(profile); ok {
		resp["daysUntilExpiry"] = days
	}

	c.JSON(http.StatusOK, resp)
}

// updateProfileHandler merges partial profile fields for the signed-in user
func (a *API) updateProfileHandler(c *gin.Context) {
	user := a.Session.User()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": premium.ErrNotAuthenticated.Error()})
		return
	}

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := a.Users.UpdateProfile(c.Request.Context(), user.UID, fields)
	if err != nil {
		abortWithError(c, err)
		return
	}

	a.Session.SetProfile(*profile)
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// Catalog

// partnersHandler returns the loaded partners
func (a *API) partnersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"partners": a.Engine.Partners(),
		"loading":  a.Engine.Loading(),
	})
}

// discountsHandler returns the flattened catalog, optionally filtered
// by category and location
func (a *API) discountsHandler(c *gin.Context) {
	discounts := a.Engine.Discounts()
	discounts = premium.FilterByCategory(discounts, c.Query("category"))
	discounts = premium.FilterByLocation(discounts, c.Query("location"))

	c.JSON(http.StatusOK, gin.H{"discounts": discounts})
}

// Premium

// activatePremiumHandler subscribes the signed-in user for one year
func (a *API) activatePremiumHandler(c *gin.Context) {
	if err := a.Engine.ActivatePremium(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	profile := a.Session.Profile()
	resp := gin.H{"profile": profile}
	if days, ok := premium.DaysUntilExpiry(profile); ok {
		resp["daysUntilExpiry"] = days
	}

	c.JSON(http.StatusOK, resp)
}

// claimsHandler returns the user's claim list
func (a *API) claimsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userDiscounts": a.Engine.UserDiscounts()})
}

type claimRequest struct {
	DiscountID string `json:"discountId" binding:"required"`
	PartnerID  string `json:"partnerId" binding:"required"`
}

// claimDiscountHandler claims a partner discount for the signed-in user
func (a *API) claimDiscountHandler(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.Engine.ClaimDiscount(c.Request.Context(), req.DiscountID, req.PartnerID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"userDiscounts": a.Engine.UserDiscounts()})
}

// useClaimHandler marks a claim as used
func (a *API) useClaimHandler(c *gin.Context) {
	if err := a.Engine.MarkDiscountUsed(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userDiscounts": a.Engine.UserDiscounts()})
}

// statsHandler returns the premium usage summary
func (a *API) statsHandler(c *gin.Context) {
	stats := a.Engine.Stats()
	if stats == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": premium.ErrPremiumRequired.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Pets

// listPetsHandler returns the owner's pets, most recent first
func (a *API) listPetsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pets":    a.Registry.Pets(),
		"loading": a.Registry.Loading(),
	})
}

// addPetHandler registers a new pet
func (a *API) addPetHandler(c *gin.Context) {
	var pet models.Pet
	if err := c.ShouldBindJSON(&pet); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := a.Registry.Add(c.Request.Context(), pet)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pet": created})
}

// getPetHandler returns one pet by id
func (a *API) getPetHandler(c *gin.Context) {
	pet := a.Registry.GetByID(c.Param("id"))
	if pet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": pets.ErrPetNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pet": pet})
}

// updatePetHandler replaces the editable fields of a pet
func (a *API) updatePetHandler(c *gin.Context) {
	var body models.Pet
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pet, err := a.Registry.Update(c.Request.Context(), c.Param("id"), func(p *models.Pet) {
		p.Name = body.Name
		p.Species = body.Species
		p.Breed = body.Breed
		p.Weight = body.Weight
		p.PhotoURL = body.PhotoURL
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pet": pet})
}

// deletePetHandler removes a pet and its stored files
func (a *API) deletePetHandler(c *gin.Context) {
	if err := a.Registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Mascota eliminada"})
}

// Medical history

func (a *API) addVaccineHandler(c *gin.Context) {
	var vaccine models.Vaccine
	if err := c.ShouldBindJSON(&vaccine); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pet, err := a.Registry.AddVaccine(c.Request.Context(), c.Param("id"), vaccine)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pet": pet})
}

func (a *API) addDiseaseHandler(c *gin.Context) {
	var disease models.Disease
	if err := c.ShouldBindJSON(&disease); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pet, err := a.Registry.AddDisease(c.Request.Context(), c.Param("id"), disease)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pet": pet})
}

func (a *API) addTreatmentHandler(c *gin.Context) {
	var treatment models.Treatment
	if err := c.ShouldBindJSON(&treatment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pet, err := a.Registry.AddTreatment(c.Request.Context(), c.Param("id"), treatment)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pet": pet})
}

// Documents

// uploadDocumentHandler stores a multipart file and attaches it to the pet
func (a *API) uploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if header.Size > maxDocumentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "El archivo excede el tamaño máximo permitido"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := a.Registry.UploadDocument(c.Request.Context(), c.Param("id"), header.Filename, contentType, data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// deleteDocumentHandler detaches a document and removes its stored file
func (a *API) deleteDocumentHandler(c *gin.Context) {
	if err := a.Registry.DeleteDocument(c.Request.Context(), c.Param("id"), c.Param("docId")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Documento eliminado"})
}

// Reminders

// upcomingVaccinesHandler returns vaccines due in the next 30 days
func (a *API) upcomingVaccinesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"upcoming": a.Registry.UpcomingVaccines()})
}

// Events

// eventsHandler upgrades the connection to a websocket notice stream
func (a *API) eventsHandler(c *gin.Context) {
	if a.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notificaciones no disponibles"})
		return
	}

	if err := a.Hub.Serve(c.Writer, c.Request); err != nil {
		// La respuesta ya fue escrita por el upgrader
		return
	}
}
