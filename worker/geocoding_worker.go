package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"prospectflow/models"
	"prospectflow/utils"
)

// geocodeBatchSize bounds how many contacts are loaded per query while
// walking a list.
const geocodeBatchSize = 200

type GeocodingWorker struct {
	DB       *gorm.DB
	Geocoder *utils.NominatimClient
	Logger   *log.Logger
}

func NewGeocodingWorker(db *gorm.DB, geocoder *utils.NominatimClient, logger *log.Logger) *GeocodingWorker {
	return &GeocodingWorker{
		DB:       db,
		Geocoder: geocoder,
		Logger:   logger,
	}
}

func (gw *GeocodingWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	gw.Logger.Println("Geocoding worker started")

	// Runs interrupted by a previous shutdown are picked up again
	gw.requeueStaleRuns()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			gw.Logger.Println("Geocoding worker shutting down...")
			return
		case <-ticker.C:
			gw.processPendingLists(ctx)
		}
	}
}

func (gw *GeocodingWorker) requeueStaleRuns() {
	res := gw.DB.Model(&models.ContactList{}).
		Where("geocoding_status = ?", models.GeocodingStatusRunning).
		Update("geocoding_status", models.GeocodingStatusPending)
	if res.Error != nil {
		gw.Logger.Printf("Error requeueing stale geocoding runs: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		gw.Logger.Printf("Requeued %d interrupted geocoding runs", res.RowsAffected)
	}
}

func (gw *GeocodingWorker) processPendingLists(ctx context.Context) {
	for {
		list, err := gw.claimPendingList()
		if err != nil {
			gw.Logger.Printf("Error claiming pending list: %v", err)
			return
		}
		if list == nil {
			return
		}

		gw.Logger.Printf("Geocoding list %d (%d contacts)", list.ID, list.GeocodingTotal)
		if err := gw.processList(ctx, list); err != nil {
			gw.Logger.Printf("Error geocoding list %d: %v", list.ID, err)
			gw.DB.Model(&models.ContactList{}).Where("id = ?", list.ID).
				Update("geocoding_status", models.GeocodingStatusFailed)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// claimPendingList flips one pending list to running. The guarded update
// keeps two workers from picking up the same list
func (gw *GeocodingWorker) claimPendingList() (*models.ContactList, error) {
	var list models.ContactList
	err := gw.DB.Where("geocoding_status = ?", models.GeocodingStatusPending).
		Order("updated_at ASC").
		First(&list).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := gw.DB.Model(&models.ContactList{}).
		Where("id = ? AND geocoding_status = ?", list.ID, models.GeocodingStatusPending).
		Update("geocoding_status", models.GeocodingStatusRunning)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	list.GeocodingStatus = models.GeocodingStatusRunning
	return &list, nil
}

func (gw *GeocodingWorker) processList(ctx context.Context, list *models.ContactList) error {
	tmpl, ok := list.GeocodingTemplate()
	if !ok {
		return fmt.Errorf("list %d has no geocoding template", list.ID)
	}

	// Walk by id so contacts Nominatim cannot resolve are passed over
	// instead of refetched forever
	var lastID uint
	for {
		if ctx.Err() != nil {
			// Shutdown mid-run; the list stays running and is requeued
			// on the next start
			return nil
		}

		var contacts []models.Contact
		err := gw.DB.Where("list_id = ? AND is_deleted = FALSE AND id > ?", list.ID, lastID).
			Where(utils.MissingCoordinatesSQL).
			Order("id ASC").
			Limit(geocodeBatchSize).
			Find(&contacts).Error
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			break
		}

		for i := range contacts {
			contact := &contacts[i]
			lastID = contact.ID

			resolved, err := gw.geocodeContact(ctx, contact, tmpl)
			if err != nil {
				return err
			}
			if !resolved {
				continue
			}

			if err := gw.DB.Model(&models.ContactList{}).Where("id = ?", list.ID).
				Update("geocoded_count", gorm.Expr("geocoded_count + ?", 1)).Error; err != nil {
				return err
			}
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return gw.DB.Model(&models.ContactList{}).Where("id = ?", list.ID).
		Update("geocoding_status", models.GeocodingStatusCompleted).Error
}

// geocodeContact tries each address candidate in turn and stores the first
// match in the contact document. Request errors are logged and skipped;
// only storage errors abort the run
func (gw *GeocodingWorker) geocodeContact(ctx context.Context, contact *models.Contact, tmpl models.GeocodingTemplate) (bool, error) {
	for _, query := range utils.AddressCandidates(contact.Data, tmpl) {
		if err := gw.pace(ctx); err != nil {
			return false, nil
		}

		result, err := gw.Geocoder.Geocode(query)
		if err != nil {
			gw.Logger.Printf("Geocode request failed for contact %d: %v", contact.ID, err)
			continue
		}
		if result == nil {
			continue
		}

		if contact.Data == nil {
			contact.Data = models.JSONMap{}
		}
		contact.Data["latitude"] = result.Latitude
		contact.Data["longitude"] = result.Longitude
		if err := gw.DB.Model(contact).Update("data", contact.Data).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// pace enforces the one request per second limit of the Nominatim usage
// policy
func (gw *GeocodingWorker) pace(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
		return nil
	}
}
