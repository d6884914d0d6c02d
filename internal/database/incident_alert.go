package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncidentAlert is one membership row of the incident/alert set.
// The composite primary key keeps the set free of duplicates; removing a row
// never touches the alert or the incident themselves.
type IncidentAlert struct {
	IncidentID uint      `gorm:"primaryKey;autoIncrement:false" json:"incident_id"`
	AlertID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"alert_id"`
	AttachedAt time.Time `gorm:"not null" json:"attached_at"`
}

func (IncidentAlert) TableName() string {
	return "incident_alerts"
}

// AttachAlert adds alertID to the incident's set and reports whether a row
// was inserted. Attaching an existing member is a no-op.
func AttachAlert(tx *gorm.DB, incidentID, alertID uint) (bool, error) {
	link := &IncidentAlert{
		IncidentID: incidentID,
		AlertID:    alertID,
		AttachedAt: Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	return res.RowsAffected > 0, res.Error
}

// DetachAlert removes alertID from the incident's set and reports whether a
// row was deleted. Detaching a non-member is a no-op.
func DetachAlert(tx *gorm.DB, incidentID, alertID uint) (bool, error) {
	res := tx.Where("incident_id = ? AND alert_id = ?", incidentID, alertID).
		Delete(&IncidentAlert{})
	return res.RowsAffected > 0, res.Error
}

// IncidentAlertIDs returns the member alert ids of an incident, ascending
func IncidentAlertIDs(tx *gorm.DB, incidentID uint) ([]uint, error) {
	ids := []uint{}
	err := tx.Model(&IncidentAlert{}).
		Where("incident_id = ?", incidentID).
		Order("alert_id ASC").
		Pluck("alert_id", &ids).Error
	return ids, err
}

// AlertIncidentIDs returns the incidents an alert belongs to, ascending
func AlertIncidentIDs(tx *gorm.DB, alertID uint) ([]uint, error) {
	ids := []uint{}
	err := tx.Model(&IncidentAlert{}).
		Where("alert_id = ?", alertID).
		Order("incident_id ASC").
		Pluck("incident_id", &ids).Error
	return ids, err
}

// IncidentAlertIDsByIncident loads memberships for several incidents in one query.
func IncidentAlertIDsByIncident(tx *gorm.DB, incidentIDs []uint) (map[uint][]uint, error) {
	result := make(map[uint][]uint, len(incidentIDs))
	if len(incidentIDs) == 0 {
		return result, nil
	}
	var links []IncidentAlert
	if err := tx.Where("incident_id IN ?", incidentIDs).
		Order("incident_id ASC, alert_id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	for _, l := range links {
		result[l.IncidentID] = append(result[l.IncidentID], l.AlertID)
	}
	return result, nil
}

// ClearIncidentMembership drops every membership row of an incident
func ClearIncidentMembership(tx *gorm.DB, incidentID uint) error {
	return tx.Where("incident_id = ?", incidentID).Delete(&IncidentAlert{}).Error
}

// ClearAlertMembership drops every membership row of an alert
func ClearAlertMembership(tx *gorm.DB, alertID uint) error {
	return tx.Where("alert_id = ?", alertID).Delete(&IncidentAlert{}).Error
}
