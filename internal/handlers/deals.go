package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"dealflow-portal/internal/database"
	"dealflow-portal/internal/models"
	"dealflow-portal/internal/valuation"
)

// DealHandler handles deal pipeline requests
type DealHandler struct {
	db *database.GormDB
}

// NewDealHandler creates a new deal handler
func NewDealHandler(db *database.GormDB) *DealHandler {
	return &DealHandler{db: db}
}

// CreateDeal creates a new deal in the pipeline
func (h *DealHandler) CreateDeal(c *gin.Context) {
	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if deal.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	if len(deal.RenovationSelections) == 0 {
		deal.RenovationSelections = valuation.DefaultRenovationOptions()
	}

	if err := h.db.CreateDeal(&deal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[Deals] Created deal %s (%s)", deal.ID, deal.Title)
	c.JSON(http.StatusCreated, deal)
}

// CreateDealFromListing creates a deal seeded from a scraped listing
func (h *DealHandler) CreateDealFromListing(c *gin.Context) {
	listingID := c.Param("listing_id")

	listing, err := h.db.GetListingByID(listingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	deal := models.Deal{
		ListingID:            listing.ID,
		Title:                listing.Title,
		Address:              listing.Address,
		CurrentPrice:         listing.Price,
		Stage:                models.StageFind,
		RenovationSelections: valuation.DefaultRenovationOptions(),
	}

	if err := h.db.CreateDeal(&deal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[Deals] Created deal %s from listing %s", deal.ID, listing.ID)
	c.JSON(http.StatusCreated, deal)
}

// ListDeals returns deals, optionally filtered by pipeline stage
func (h *DealHandler) ListDeals(c *gin.Context) {
	stage := models.DealStage(c.Query("stage"))
	if stage != "" && !models.ValidStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage: " + string(stage)})
		return
	}

	deals, err := h.db.GetDeals(stage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deals": deals,
		"count": len(deals),
	})
}

// GetDeal returns one deal with its latest analyses attached
func (h *DealHandler) GetDeal(c *gin.Context) {
	deal, err := h.db.GetDealByID(c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, deal)
}

// UpdateDeal updates deal fields. Stage changes go through TransitionStage.
func (h *DealHandler) UpdateDeal(c *gin.Context) {
	id := c.Param("id")

	// Load first so a bad ID is a 404, not a silent no-op update
	existing, err := h.db.GetDealByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deal.ID = existing.ID

	if err := h.db.UpdateDeal(&deal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.db.GetDealByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteDeal removes a deal and its history
func (h *DealHandler) DeleteDeal(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.db.GetDealByID(id); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.DeleteDeal(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[Deals] Deleted deal %s", id)
	c.JSON(http.StatusOK, gin.H{"message": "Deal deleted", "id": id})
}

// TransitionStage moves a deal to the next pipeline stage
func (h *DealHandler) TransitionStage(c *gin.Context) {
	var req struct {
		Stage models.DealStage `json:"stage" binding:"required"`
		Note  string           `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidStage(req.Stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage: " + string(req.Stage)})
		return
	}

	deal, err := h.db.TransitionDealStage(c.Param("id"), req.Stage, req.Note)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		// Invalid transition is a client error, not a server failure
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[Deals] Deal %s -> %s", deal.ID, deal.Stage)
	c.JSON(http.StatusOK, deal)
}

// GetStageHistory returns a deal's pipeline transitions, oldest first
func (h *DealHandler) GetStageHistory(c *gin.Context) {
	dealID := c.Param("id")

	if _, err := h.db.GetDealByID(dealID); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	events, err := h.db.GetDealStageEvents(dealID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deal_id": dealID,
		"events":  events,
		"count":   len(events),
	})
}

// UpdateRenovations replaces a deal's renovation selections
func (h *DealHandler) UpdateRenovations(c *gin.Context) {
	id := c.Param("id")

	var selections models.RenovationSelections
	if err := c.ShouldBindJSON(&selections); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, entry := range selections {
		if entry.Key == "" || entry.Option == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "each selection needs a key and an option"})
			return
		}
	}

	if _, err := h.db.GetDealByID(id); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.UpdateDealRenovations(id, selections); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	deal, err := h.db.GetDealByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, deal)
}

// GetRenovationOptions returns the default renovation categories and assumptions
func (h *DealHandler) GetRenovationOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"options": valuation.DefaultRenovationOptions(),
	})
}

// GetValuation computes the full valuation for a deal: base value, ARV,
// renovation figures, recommended offer and quick profit
func (h *DealHandler) GetValuation(c *gin.Context) {
	deal, err := h.db.GetDealByID(c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	baseValue, baseSource := valuation.BaseMarketValue(deal)
	arv := valuation.CalculateARV(deal)
	selectedCost := valuation.CalculateTotalRenovationCost(deal.RenovationSelections)
	estimate, estimateSource := valuation.RenovationEstimate(deal)
	offer := valuation.CalculateOfferPrice(deal, estimate)
	quickProfit := valuation.EstimateQuickProfit(deal)

	c.JSON(http.StatusOK, gin.H{
		"deal_id": deal.ID,
		"base_value": gin.H{
			"amount":    baseValue,
			"source":    baseSource,
			"formatted": valuation.FormatCurrency(baseValue),
		},
		"arv": gin.H{
			"amount":    arv,
			"formatted": valuation.FormatCurrency(arv),
		},
		"renovation": gin.H{
			"selected_cost":      selectedCost,
			"estimate":           estimate,
			"estimate_source":    estimateSource,
			"selected_formatted": valuation.FormatCurrency(selectedCost),
			"estimate_formatted": valuation.FormatCurrency(estimate),
		},
		"offer_price": gin.H{
			"amount":    offer,
			"formatted": valuation.FormatCurrency(offer),
			"viable":    offer > 0,
		},
		"quick_profit": gin.H{
			"amount":    quickProfit,
			"formatted": valuation.FormatCurrency(quickProfit),
		},
	})
}

// TriggerAnalysis queues AI analysis jobs for a deal
func (h *DealHandler) TriggerAnalysis(c *gin.Context) {
	dealID := c.Param("id")

	var req struct {
		Kinds    []string `json:"kinds"`
		Priority int      `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Kinds) == 0 {
		req.Kinds = []string{
			models.AnalysisKindMarket,
			models.AnalysisKindRenovation,
			models.AnalysisKindRisk,
		}
	}
	for _, kind := range req.Kinds {
		switch kind {
		case models.AnalysisKindMarket, models.AnalysisKindRenovation, models.AnalysisKindRisk:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown analysis kind: " + kind})
			return
		}
	}

	if _, err := h.db.GetDealByID(dealID); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	enqueued, err := h.db.EnqueueAnalysis(dealID, req.Kinds, req.Priority)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[Deals] Queued %d analysis jobs for deal %s", enqueued, dealID)
	c.JSON(http.StatusAccepted, gin.H{
		"deal_id":  dealID,
		"enqueued": enqueued,
		"kinds":    req.Kinds,
	})
}
