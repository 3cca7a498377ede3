package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"prospectflow/config"
	"prospectflow/models"
)

// HandleGeocodingProgressWS streams geocoding progress for one list until
// the run finishes or the client disconnects
func HandleGeocodingProgressWS(c *websocket.Conn) {
	defer c.Close()

	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return
	}
	listID := c.Params("id")

	for {
		var list models.ContactList
		if err := config.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
			log.Printf("Geocoding progress lookup failed for list %s: %v", listID, err)
			_ = c.WriteJSON(struct {
				Error string `json:"error"`
			}{Error: "List not found"})
			return
		}

		progress := struct {
			Status   string `json:"status"`
			Geocoded int    `json:"geocoded"`
			Total    int    `json:"total"`
			Percent  int    `json:"percent"`
		}{
			Status:   list.GeocodingStatus,
			Geocoded: list.GeocodedCount,
			Total:    list.GeocodingTotal,
		}
		if list.GeocodingTotal > 0 {
			progress.Percent = list.GeocodedCount * 100 / list.GeocodingTotal
		}

		// Write JSON message
		if err := c.WriteJSON(progress); err != nil {
			log.Printf("Error writing JSON: %v", err)
			return
		}

		if list.GeocodingStatus == models.GeocodingStatusCompleted ||
			list.GeocodingStatus == models.GeocodingStatusFailed ||
			list.GeocodingStatus == "" {
			return
		}

		time.Sleep(1 * time.Second)
	}
}
