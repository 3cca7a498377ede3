package utils

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"prospectflow/models"
)

// ContactPageSize is the fixed page size for contact listings.
const ContactPageSize = 50

// Sort directions
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// InvalidFilterError is a caller error in the filter inputs. It is never
// coerced away: a bad status_set or sort_direction surfaces as a 400 so
// client bugs stay visible.
type InvalidFilterError struct {
	Message string
}

func (e *InvalidFilterError) Error() string {
	return e.Message
}

// ContactFilters describes one filtered view over a list's contacts. The
// same value drives both the paginated listing and the CSV export, which
// is what keeps "export what I currently see" exact.
type ContactFilters struct {
	SearchField   string
	SearchTerm    string
	SortField     string
	SortDirection string
	PipelineOnly  bool
	StatusSet     []string
}

// ParseContactFilters reads the filter query parameters shared by the
// listing and export endpoints.
func ParseContactFilters(c *fiber.Ctx) (ContactFilters, error) {
	filters := ContactFilters{
		SearchField:   c.Query("search_field"),
		SearchTerm:    c.Query("search_term"),
		SortField:     c.Query("sort_field"),
		SortDirection: c.Query("sort_direction"),
		PipelineOnly:  c.QueryBool("pipeline_only", false),
	}

	switch filters.SortDirection {
	case "", SortAsc, SortDesc:
	default:
		return filters, &InvalidFilterError{Message: "sort_direction must be asc or desc"}
	}
	if filters.SortDirection == "" {
		filters.SortDirection = SortAsc
	}

	if raw := c.Query("status_set"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := strings.TrimSpace(part)
			if status == "" {
				continue
			}
			if !models.IsContactStatus(status) {
				return filters, &InvalidFilterError{Message: "unknown status: " + status}
			}
			filters.StatusSet = append(filters.StatusSet, status)
		}
	}

	return filters, nil
}

// applyContactFilters builds the query scope shared by listing, export and
// stats: non-deleted contacts of one list, narrowed by search, pipeline
// and status filters. The document key is always bound as a parameter,
// never concatenated into the SQL.
func applyContactFilters(db *gorm.DB, listID uint, f ContactFilters) *gorm.DB {
	query := db.Model(&models.Contact{}).
		Where("contacts.list_id = ? AND contacts.is_deleted = FALSE", listID)

	if f.SearchField != "" {
		term := "%" + strings.ToLower(f.SearchTerm) + "%"
		query = query.Where("LOWER(data ->> ?) LIKE ?", f.SearchField, term)
	}
	if f.PipelineOnly {
		query = query.Where("contacts.in_pipeline = TRUE")
	}
	if len(f.StatusSet) > 0 {
		query = query.Where(StatusSQL()+" IN ?", f.StatusSet)
	}

	return query
}

// selectContactColumns attaches the derived status and activity count to a
// contact query.
func selectContactColumns(query *gorm.DB) *gorm.DB {
	return query.
		Select("contacts.*, " + StatusSQL() + " AS status, " + ActivitiesCountSQL() + " AS activities_count").
		Order("contacts.created_at DESC, contacts.id DESC")
}

// QueryContacts returns one page of a list's contacts plus the total
// matching count. Pages are 1-based with a fixed size of 50. When a sort
// field is requested the filtered set is fetched in base order and sorted
// in application code, where the numeric-or-string decision can see every
// compared value.
func QueryContacts(db *gorm.DB, listID uint, f ContactFilters, page int) ([]models.Contact, int64, error) {
	if page < 1 {
		page = 1
	}

	query := applyContactFilters(db, listID, f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = selectContactColumns(query)
	offset := (page - 1) * ContactPageSize

	var contacts []models.Contact
	if f.SortField == "" {
		if err := query.Offset(offset).Limit(ContactPageSize).Find(&contacts).Error; err != nil {
			return nil, 0, err
		}
		return contacts, total, nil
	}

	if err := query.Find(&contacts).Error; err != nil {
		return nil, 0, err
	}
	SortContactsByField(contacts, f.SortField, f.SortDirection == SortDesc)

	if offset >= len(contacts) {
		return []models.Contact{}, total, nil
	}
	end := offset + ContactPageSize
	if end > len(contacts) {
		end = len(contacts)
	}
	return contacts[offset:end], total, nil
}

// CollectContacts resolves the complete (unpaginated) contact set for the
// given filters. The export path goes through here so its rows are exactly
// the rows the listing shows for the same inputs.
func CollectContacts(db *gorm.DB, listID uint, f ContactFilters) ([]models.Contact, error) {
	var contacts []models.Contact
	query := selectContactColumns(applyContactFilters(db, listID, f))
	if err := query.Find(&contacts).Error; err != nil {
		return nil, err
	}
	if f.SortField != "" {
		SortContactsByField(contacts, f.SortField, f.SortDirection == SortDesc)
	}
	return contacts, nil
}

// SortContactsByField orders contacts by a document field. Comparison is
// numeric only when every contact that has the field holds a parseable
// number ("5" next to "five" falls back to strings); otherwise values
// compare as case-sensitive strings. Contacts missing the field always
// sort last, whatever the direction, and the sort is stable over the base
// created_at ordering.
func SortContactsByField(contacts []models.Contact, field string, descending bool) {
	present := make([]models.Contact, 0, len(contacts))
	missing := make([]models.Contact, 0)
	for _, contact := range contacts {
		if _, ok := contact.Data.Field(field); ok {
			present = append(present, contact)
		} else {
			missing = append(missing, contact)
		}
	}

	numeric := true
	for _, contact := range present {
		v, _ := contact.Data.Field(field)
		if _, ok := NumericValue(v); !ok {
			numeric = false
			break
		}
	}

	sort.SliceStable(present, func(i, j int) bool {
		vi, _ := present[i].Data.Field(field)
		vj, _ := present[j].Data.Field(field)

		var less, equal bool
		if numeric {
			ni, _ := NumericValue(vi)
			nj, _ := NumericValue(vj)
			less, equal = ni < nj, ni == nj
		} else {
			si, sj := StringifyField(vi), StringifyField(vj)
			less, equal = si < sj, si == sj
		}
		if equal {
			return false
		}
		if descending {
			return !less
		}
		return less
	})

	copy(contacts, present)
	copy(contacts[len(present):], missing)
}
