package claims

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the Postgres-backed Store. Every mutation runs inside a
// transaction so a mid-batch failure leaves the prior dataset in place.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type claimModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	PatientName   string    `gorm:"column:patient_name"`
	BilledCents   int64     `gorm:"column:billed_cents"`
	PaidCents     int64     `gorm:"column:paid_cents"`
	Status        string    `gorm:"column:status;index"`
	InsurerName   string    `gorm:"column:insurer_name;index"`
	DischargeDate time.Time `gorm:"column:discharge_date"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (claimModel) TableName() string { return "claims" }

type claimDetailModel struct {
	ClaimID      string         `gorm:"primaryKey;column:claim_id"`
	CPTCodes     datatypes.JSON `gorm:"column:cpt_codes"`
	DenialReason *string        `gorm:"column:denial_reason"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (claimDetailModel) TableName() string { return "claim_details" }

type claimFlagModel struct {
	ID          string     `gorm:"primaryKey;column:id"`
	ClaimID     string     `gorm:"column:claim_id;index:idx_flag_claim_created"`
	Reason      string     `gorm:"column:reason"`
	Description string     `gorm:"column:description"`
	CreatedBy   string     `gorm:"column:created_by"`
	Resolved    bool       `gorm:"column:resolved"`
	ResolvedBy  string     `gorm:"column:resolved_by"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;index:idx_flag_claim_created"`
}

func (claimFlagModel) TableName() string { return "claim_flags" }

type claimNoteModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ClaimID   string    `gorm:"column:claim_id;index:idx_note_claim_created"`
	Body      string    `gorm:"column:body"`
	CreatedBy string    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_note_claim_created"`
}

func (claimNoteModel) TableName() string { return "claim_notes" }

// datasetVersionModel is a single-row counter bumped by every committed
// import; readers key snapshots (and the dashboard cache) off it.
type datasetVersionModel struct {
	ID        int       `gorm:"primaryKey;column:id"`
	Version   uint64    `gorm:"column:version"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (datasetVersionModel) TableName() string { return "dataset_version" }

func (r *Repository) AutoMigrate() error {
	if err := r.db.AutoMigrate(
		&claimModel{},
		&claimDetailModel{},
		&claimFlagModel{},
		&claimNoteModel{},
		&datasetVersionModel{},
	); err != nil {
		return err
	}
	return r.db.FirstOrCreate(&datasetVersionModel{ID: 1}, datasetVersionModel{ID: 1}).Error
}

func (r *Repository) Snapshot(ctx context.Context) (*Dataset, error) {
	var ds Dataset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var version datasetVersionModel
		if err := tx.First(&version, "id = 1").Error; err != nil {
			return err
		}
		ds.Version = version.Version

		var claimRows []claimModel
		if err := tx.Order("id").Find(&claimRows).Error; err != nil {
			return err
		}
		var detailRows []claimDetailModel
		if err := tx.Find(&detailRows).Error; err != nil {
			return err
		}
		details := make(map[string]claimDetailModel, len(detailRows))
		for _, row := range detailRows {
			details[row.ClaimID] = row
		}

		ds.Claims = make([]Claim, 0, len(claimRows))
		for _, row := range claimRows {
			ds.Claims = append(ds.Claims, buildClaim(row, details[row.ID]))
		}

		var flagRows []claimFlagModel
		if err := tx.Order("claim_id, created_at").Find(&flagRows).Error; err != nil {
			return err
		}
		for _, row := range flagRows {
			ds.Flags = append(ds.Flags, Flag{
				ID:          row.ID,
				ClaimID:     row.ClaimID,
				Reason:      row.Reason,
				Description: row.Description,
				CreatedBy:   row.CreatedBy,
				CreatedAt:   row.CreatedAt,
				Resolved:    row.Resolved,
				ResolvedBy:  row.ResolvedBy,
				ResolvedAt:  row.ResolvedAt,
			})
		}

		var noteRows []claimNoteModel
		if err := tx.Order("claim_id, created_at").Find(&noteRows).Error; err != nil {
			return err
		}
		for _, row := range noteRows {
			ds.Notes = append(ds.Notes, Note{
				ID:        row.ID,
				ClaimID:   row.ClaimID,
				Body:      row.Body,
				CreatedBy: row.CreatedBy,
				CreatedAt: row.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *Repository) ReplaceAll(ctx context.Context, claims []Claim) (MutationSummary, error) {
	var summary MutationSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(claims))
		for _, claim := range claims {
			ids = append(ids, claim.ID)
		}

		// Flags and notes for identifiers that reappear in the new dataset
		// survive the overwrite; the rest are cascade-deleted and counted.
		flagQuery := tx.Model(&claimFlagModel{})
		noteQuery := tx.Model(&claimNoteModel{})
		if len(ids) > 0 {
			flagQuery = flagQuery.Where("claim_id NOT IN ?", ids)
			noteQuery = noteQuery.Where("claim_id NOT IN ?", ids)
		} else {
			flagQuery = flagQuery.Where("1 = 1")
			noteQuery = noteQuery.Where("1 = 1")
		}

		res := flagQuery.Delete(&claimFlagModel{})
		if res.Error != nil {
			return res.Error
		}
		summary.OrphanedFlags = int(res.RowsAffected)

		res = noteQuery.Delete(&claimNoteModel{})
		if res.Error != nil {
			return res.Error
		}
		summary.OrphanedNotes = int(res.RowsAffected)

		if err := tx.Where("1 = 1").Delete(&claimDetailModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&claimModel{}).Error; err != nil {
			return err
		}

		if err := insertClaims(tx, claims); err != nil {
			return err
		}

		version, err := bumpVersion(tx)
		if err != nil {
			return err
		}
		summary.Version = version
		return nil
	})
	if err != nil {
		return MutationSummary{}, err
	}
	return summary, nil
}

func (r *Repository) ApplyAppend(ctx context.Context, inserts, updates []Claim) (MutationSummary, error) {
	var summary MutationSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, claim := range updates {
			// In-place updates keep the row's created_at; the merge has
			// already resolved which field values win.
			if err := tx.Model(&claimModel{}).
				Where("id = ?", claim.ID).
				Updates(claimUpdateColumns(claim, now)).Error; err != nil {
				return err
			}
			if err := tx.Model(&claimDetailModel{}).
				Where("claim_id = ?", claim.ID).
				Updates(detailUpdateColumns(claim, now)).Error; err != nil {
				return err
			}
		}

		if err := insertClaims(tx, inserts); err != nil {
			return err
		}

		version, err := bumpVersion(tx)
		if err != nil {
			return err
		}
		summary.Version = version
		return nil
	})
	if err != nil {
		return MutationSummary{}, err
	}
	return summary, nil
}

func (r *Repository) AddFlag(ctx context.Context, flag Flag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimExists(tx, flag.ClaimID); err != nil {
			return err
		}
		return tx.Create(&claimFlagModel{
			ID:          flag.ID,
			ClaimID:     flag.ClaimID,
			Reason:      flag.Reason,
			Description: flag.Description,
			CreatedBy:   flag.CreatedBy,
			Resolved:    flag.Resolved,
			ResolvedBy:  flag.ResolvedBy,
			ResolvedAt:  flag.ResolvedAt,
			CreatedAt:   flag.CreatedAt,
		}).Error
	})
}

func (r *Repository) ResolveFlags(ctx context.Context, claimID, resolvedBy string) (int, error) {
	resolved := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimExists(tx, claimID); err != nil {
			return err
		}
		res := tx.Model(&claimFlagModel{}).
			Where("claim_id = ? AND resolved = ?", claimID, false).
			Updates(map[string]interface{}{
				"resolved":    true,
				"resolved_by": resolvedBy,
				"resolved_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		resolved = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

func (r *Repository) AddNote(ctx context.Context, note Note) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimExists(tx, note.ClaimID); err != nil {
			return err
		}
		return tx.Create(&claimNoteModel{
			ID:        note.ID,
			ClaimID:   note.ClaimID,
			Body:      note.Body,
			CreatedBy: note.CreatedBy,
			CreatedAt: note.CreatedAt,
		}).Error
	})
}

func claimExists(tx *gorm.DB, claimID string) error {
	var row claimModel
	err := tx.Select("id").First(&row, "id = ?", claimID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrClaimNotFound
	}
	return err
}

func insertClaims(tx *gorm.DB, claims []Claim) error {
	if len(claims) == 0 {
		return nil
	}
	now := time.Now().UTC()

	claimRows := make([]claimModel, 0, len(claims))
	detailRows := make([]claimDetailModel, 0, len(claims))
	for _, claim := range claims {
		claimRows = append(claimRows, claimModel{
			ID:            claim.ID,
			PatientName:   claim.PatientName,
			BilledCents:   int64(claim.BilledAmount),
			PaidCents:     int64(claim.PaidAmount),
			Status:        string(claim.Status),
			InsurerName:   claim.InsurerName,
			DischargeDate: claim.DischargeDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		})

		detailRows = append(detailRows, claimDetailModel{
			ClaimID:      claim.ID,
			CPTCodes:     cptCodesJSON(claim.Detail.CPTCodes),
			DenialReason: claim.Detail.DenialReason,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := tx.CreateInBatches(claimRows, 500).Error; err != nil {
		return err
	}
	return tx.CreateInBatches(detailRows, 500).Error
}

func claimUpdateColumns(claim Claim, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"patient_name":   claim.PatientName,
		"billed_cents":   int64(claim.BilledAmount),
		"paid_cents":     int64(claim.PaidAmount),
		"status":         string(claim.Status),
		"insurer_name":   claim.InsurerName,
		"discharge_date": claim.DischargeDate,
		"updated_at":     now,
	}
}

func detailUpdateColumns(claim Claim, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"cpt_codes":     cptCodesJSON(claim.Detail.CPTCodes),
		"denial_reason": claim.Detail.DenialReason,
		"updated_at":    now,
	}
}

func cptCodesJSON(codes []string) datatypes.JSON {
	if len(codes) == 0 {
		return nil
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func bumpVersion(tx *gorm.DB) (uint64, error) {
	if err := tx.Model(&datasetVersionModel{}).
		Where("id = 1").
		Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		return 0, err
	}
	var row datasetVersionModel
	if err := tx.First(&row, "id = 1").Error; err != nil {
		return 0, err
	}
	return row.Version, nil
}

func buildClaim(row claimModel, detail claimDetailModel) Claim {
	claim := Claim{
		ID:            row.ID,
		PatientName:   row.PatientName,
		BilledAmount:  Amount(row.BilledCents),
		PaidAmount:    Amount(row.PaidCents),
		Status:        Status(row.Status),
		InsurerName:   row.InsurerName,
		DischargeDate: row.DischargeDate,
	}
	claim.Detail.DenialReason = detail.DenialReason
	if len(detail.CPTCodes) > 0 {
		var codes []string
		_ = json.Unmarshal(detail.CPTCodes, &codes)
		claim.Detail.CPTCodes = codes
	}
	return claim
}
