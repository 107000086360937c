package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/verifystore"
)

// ExportController serves the authenticated bulk export of verification
// records.
type ExportController struct {
	store verifystore.Store
}

// NewExportController creates the export controller.
func NewExportController(store verifystore.Store) *ExportController {
	return &ExportController{store: store}
}

// exportedUser is the reshaped record for external consumers.
type exportedUser struct {
	ID           string `json:"_id"`
	UserID       string `json:"userid"`
	Username     string `json:"username"`
	PremiumType  int    `json:"premium_type"`
	Email        string `json:"email"`
	Verified     bool   `json:"verified"`
	AvatarURL    string `json:"avatarURL"`
	VerifiedDate string `json:"verifiedDate"`
	StorageKey   string `json:"storage_key"`
	LastUpdated  string `json:"last_updated"`
}

// HandleExport returns every stored verification record, reshaped for the
// export consumers. POST only; the router rejects other methods.
func (ec *ExportController) HandleExport(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	users, err := ec.store.List(ctx)
	if err != nil {
		log.Errorf("[Export] Listing records failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Could not read verification records",
			"error":   err.Error(),
		})
	}

	exported := make([]exportedUser, 0, len(users))
	for _, u := range users {
		exported = append(exported, reshapeUser(u))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Export completed",
		"data": fiber.Map{
			"exportInfo": fiber.Map{
				"count":           len(exported),
				"storage_backend": ec.store.Name(),
				"exported_at":     time.Now().UTC().Format(time.RFC3339),
			},
			"users": exported,
		},
	})
}

func reshapeUser(u models.VerifiedUser) exportedUser {
	return exportedUser{
		ID:           u.DiscordID,
		UserID:       u.DiscordID,
		Username:     u.Username,
		PremiumType:  u.PremiumType,
		Email:        u.Email,
		Verified:     u.Status == models.STATUS_VERIFIED,
		AvatarURL:    u.AvatarURL,
		VerifiedDate: u.VerifiedAt.UTC().Format(time.RFC3339),
		StorageKey:   u.StorageKey(),
		LastUpdated:  u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
