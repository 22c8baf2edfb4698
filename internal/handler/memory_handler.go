package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/quill/internal/job"
	"github.com/xxxsen/quill/internal/memory"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/repo"

	"go.uber.org/zap"
)

// MemoryHandler implements spec §6's memory-profile surface (C11): manual and
// automatic consolidation triggers, plus profile/settings read and write.
type MemoryHandler struct {
	consolidator *memory.Consolidator
	extractor    *memory.Extractor
	profiles     *repo.ProfileRepo
	supervisor   *job.Supervisor
}

func NewMemoryHandler(consolidator *memory.Consolidator, extractor *memory.Extractor, profiles *repo.ProfileRepo, supervisor *job.Supervisor) *MemoryHandler {
	return &MemoryHandler{consolidator: consolidator, extractor: extractor, profiles: profiles, supervisor: supervisor}
}

type consolidateRequest struct {
	MemoryTypes           []model.MemoryType `json:"memory_types"`
	ForceConsolidate      bool                `json:"force_consolidate"`
	ConsolidationStrategy string              `json:"consolidation_strategy"`
}

// Consolidate runs C11 synchronously. A supplied consolidation_strategy is
// saved into the stored settings before the pass, so later passes use it
// too; force_consolidate only triggers that save and does not otherwise
// change the pass.
func (h *MemoryHandler) Consolidate(c *gin.Context) {
	var req consolidateRequest
	_ = c.ShouldBindJSON(&req)
	userID := getUserID(c)

	if req.ConsolidationStrategy != "" || req.ForceConsolidate {
		profile, err := h.profiles.GetByID(c.Request.Context(), userID)
		if err != nil {
			handleError(c, err)
			return
		}
		if req.ConsolidationStrategy != "" {
			profile.MemoryProfile.ConsolidationSettings.ConsolidationStrategy = req.ConsolidationStrategy
		}
		if err := h.profiles.UpdateMemoryProfile(c.Request.Context(), userID, profile.MemoryProfile); err != nil {
			handleError(c, err)
			return
		}
	}

	if err := h.consolidator.Consolidate(c.Request.Context(), userID, req.MemoryTypes); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *MemoryHandler) Profile(c *gin.Context) {
	profile, err := h.profiles.GetByID(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, profile.MemoryProfile)
}

// Summary returns a compact digest of bucket sizes, for a UI badge rather
// than the full bucket contents Profile exposes.
func (h *MemoryHandler) Summary(c *gin.Context) {
	profile, err := h.profiles.GetByID(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	mp := profile.MemoryProfile
	response.Success(c, gin.H{
		"preferences_count": len(mp.Preferences),
		"facts_count":       len(mp.Facts),
		"context_count":     len(mp.Context),
		"insights_count":    len(mp.Insights),
		"last_consolidated": mp.LastConsolidated,
	})
}

type updateSettingsRequest struct {
	AutoConsolidate        *bool    `json:"auto_consolidate"`
	ConsolidationThreshold *float64 `json:"consolidation_threshold"`
	MaxMemoriesPerType     *int     `json:"max_memories_per_type"`
	ConsolidationStrategy  *string  `json:"consolidation_strategy"`
}

func (h *MemoryHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	userID := getUserID(c)
	profile, err := h.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	settings := &profile.MemoryProfile.ConsolidationSettings
	if req.AutoConsolidate != nil {
		settings.AutoConsolidate = *req.AutoConsolidate
	}
	if req.ConsolidationThreshold != nil {
		settings.ConsolidationThreshold = *req.ConsolidationThreshold
	}
	if req.MaxMemoriesPerType != nil {
		settings.MaxMemoriesPerType = *req.MaxMemoriesPerType
	}
	if req.ConsolidationStrategy != nil {
		settings.ConsolidationStrategy = *req.ConsolidationStrategy
	}
	if err := h.profiles.UpdateMemoryProfile(c.Request.Context(), userID, profile.MemoryProfile); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, settings)
}

// AutoConsolidate is the hook C10 fires after a turn if the profile's
// auto_consolidate flag is set; exposed here too so a client can force the
// same check without waiting on the next turn, per spec §6. session_id, when
// given, first runs C11 extraction over that session so its memories are
// eligible for this consolidation pass rather than the next one.
func (h *MemoryHandler) AutoConsolidate(c *gin.Context) {
	userID := getUserID(c)
	sessionID := c.Query("session_id")
	profile, err := h.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	if !profile.MemoryProfile.ConsolidationSettings.AutoConsolidate {
		response.Success(c, gin.H{"scheduled": false, "reason": "auto_consolidate disabled"})
		return
	}

	logger := logging.From(c.Request.Context())
	h.supervisor.Spawn("auto_consolidate:"+userID, func(ctx context.Context) error {
		if sessionID != "" && h.extractor != nil {
			if err := h.extractor.Extract(ctx, sessionID, userID); err != nil {
				logger.Warn("pre-consolidation extraction failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
		if err := h.consolidator.Consolidate(ctx, userID, nil); err != nil {
			logger.Warn("auto consolidate failed", zap.String("user_id", userID), zap.Error(err))
			return err
		}
		return nil
	})
	response.Success(c, gin.H{"scheduled": true})
}
