package services

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
)

func ToWireUser(u *models.User) wire.User {
	return wire.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: common.FormatTime(u.CreatedAt),
	}
}

func toWireSubmission(s *models.Submission) (wire.RemoteSubmission, error) {
	out := wire.RemoteSubmission{
		ID:          s.ID,
		FormID:      s.FormID,
		UserID:      s.UserID,
		StartedAt:   common.FormatTime(s.StartedAt),
		CompletedAt: common.FormatTimePtr(s.CompletedAt),
		CreatedAt:   common.FormatTime(s.CreatedAt),
		UpdatedAt:   common.FormatTime(s.UpdatedAt),
		Answers:     []wire.Answer{},
	}
	if len(s.Metadata) > 0 {
		if err := json.Unmarshal(s.Metadata, &out.Metadata); err != nil {
			return out, fmt.Errorf("submission %s metadata: %w", s.ID, err)
		}
	}
	if len(s.Answers) > 0 {
		if err := json.Unmarshal(s.Answers, &out.Answers); err != nil {
			return out, fmt.Errorf("submission %s answers: %w", s.ID, err)
		}
	}
	return out, nil
}

func toWireForm(f *models.Form) (wire.Form, error) {
	out := wire.Form{
		ID:              f.ID,
		Name:            f.Name,
		Description:     f.Description,
		Version:         f.Version,
		AssignedUserIDs: f.AssignedUserIDs,
		UpdatedAt:       common.FormatTime(f.UpdatedAt),
		Steps:           []wire.Step{},
	}
	if len(f.Steps) > 0 {
		if err := json.Unmarshal(f.Steps, &out.Steps); err != nil {
			return out, fmt.Errorf("form %s steps: %w", f.ID, err)
		}
	}
	return out, nil
}

func toWireSite(s *models.Site) wire.Site {
	return wire.Site{
		ID:        s.ID,
		Code:      s.Code,
		Name:      s.Name,
		Address:   s.Address,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		UpdatedAt: common.FormatTime(s.UpdatedAt),
	}
}

func toWireInventory(items []*models.InventoryItem) []wire.InventoryItem {
	out := make([]wire.InventoryItem, 0, len(items))
	for _, it := range items {
		out = append(out, wire.InventoryItem{
			ID:           it.ID,
			SiteID:       it.SiteID,
			Name:         it.Name,
			Model:        it.Model,
			SerialNumber: it.SerialNumber,
			Quantity:     it.Quantity,
		})
	}
	return out
}
