package utils

import (
	"prospectflow/models"
)

// latestResultSQL selects the result of the most recent non-deleted
// activity for the contact row under consideration. The id tiebreak keeps
// the choice deterministic when two activities share a creation timestamp.
// Runs unchanged on Postgres and SQLite.
const latestResultSQL = `(SELECT a.result FROM activities a WHERE a.contact_id = contacts.id AND a.is_deleted = FALSE ORDER BY a.created_at DESC, a.id DESC LIMIT 1)`

// StatusSQL returns the CASE expression deriving a contact's status inside
// a query. Used both as a select column (AS status) and inside IN filters,
// so status never has to be persisted or resolved per contact.
func StatusSQL() string {
	return `CASE` +
		` WHEN ` + latestResultSQL + ` IS NULL THEN '` + models.StatusNotContacted + `'` +
		` WHEN ` + latestResultSQL + ` = '` + models.ActivityResultLead + `' THEN '` + models.StatusConverted + `'` +
		` WHEN ` + latestResultSQL + ` = '` + models.ActivityResultNo + `' THEN '` + models.StatusDropped + `'` +
		` ELSE '` + models.StatusInWorking + `' END`
}

// ActivitiesCountSQL returns the expression counting a contact's
// non-deleted activities, selected AS activities_count.
func ActivitiesCountSQL() string {
	return `(SELECT COUNT(*) FROM activities a WHERE a.contact_id = contacts.id AND a.is_deleted = FALSE)`
}

// DeriveStatus maps a contact's activities to its status: the latest
// non-deleted activity decides (lead -> converted, no -> dropped, anything
// else -> in_working); none at all means not_contacted. The slice may be
// in any order and may contain soft-deleted entries.
func DeriveStatus(activities []models.Activity) string {
	var latest *models.Activity
	for i := range activities {
		a := &activities[i]
		if a.IsDeleted {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID > latest.ID) {
			latest = a
		}
	}

	if latest == nil {
		return models.StatusNotContacted
	}

	switch latest.Result {
	case models.ActivityResultLead:
		return models.StatusConverted
	case models.ActivityResultNo:
		return models.StatusDropped
	default:
		return models.StatusInWorking
	}
}
