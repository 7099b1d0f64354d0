package handlers

import (
	"net/http"

	"github.com/authwave/authwave/internal/config"
	"github.com/authwave/authwave/internal/middleware"
	"github.com/authwave/authwave/internal/services"
	"github.com/authwave/authwave/internal/token"

	"github.com/gin-gonic/gin"
)

// SSOHandler serves the one-shot handoff from the developer portal to the
// cPanel frontend, and the cookie-based session endpoints on the cPanel side.
type SSOHandler struct {
	broker *services.TicketBroker
	devs   *services.DeveloperService
	cfg    *config.Config
}

func NewSSOHandler(broker *services.TicketBroker, devs *services.DeveloperService, cfg *config.Config) *SSOHandler {
	return &SSOHandler{broker: broker, devs: devs, cfg: cfg}
}

// IssueTicket godoc
//
//	@Summary		Issue a cPanel SSO ticket
//	@Description	Issues a short-lived single-use SSO ticket for the cPanel handoff. The response carries the ticket URL the portal redirects the browser to.
//	@Tags			SSO
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	object{success=bool,data=object{ticket=string,url=string,expires_in=int}}	"Ticket URL and TTL"
//	@Failure		401	{object}	object{success=bool,error=string,message=string}	"Missing or invalid developer token"
//	@Router			/portal/cpanel-ticket [post]
func (h *SSOHandler) IssueTicket(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	ticket, err := h.broker.Issue(c.Request.Context(), developerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{
		"ticket":     ticket.Value,
		"url":        ticket.URL,
		"expires_in": int(ticket.ExpiresIn.Seconds()),
	})
}

// setCPanelCookies installs the admin pair as httpOnly cookies. SameSite=None
// because the cPanel frontend lives on a different origin; that forces Secure
// in real deployments.
func (h *SSOHandler) setCPanelCookies(c *gin.Context, pair *token.Pair) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(
		middleware.CPanelAccessCookie,
		pair.AccessToken,
		int(h.cfg.CPanelAccessExpiration.Seconds()),
		"/",
		h.cfg.CPanelCookieDomain,
		h.cfg.CPanelCookieSecure,
		true,
	)
	c.SetCookie(
		"cpanel_refresh_token",
		pair.RefreshToken,
		int(h.cfg.CPanelRefreshExpiration.Seconds()),
		"/cpanel",
		h.cfg.CPanelCookieDomain,
		h.cfg.CPanelCookieSecure,
		true,
	)
}

func (h *SSOHandler) clearCPanelCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middleware.CPanelAccessCookie, "", -1, "/", h.cfg.CPanelCookieDomain, h.cfg.CPanelCookieSecure, true)
	c.SetCookie("cpanel_refresh_token", "", -1, "/cpanel", h.cfg.CPanelCookieDomain, h.cfg.CPanelCookieSecure, true)
}

// RedeemTicket godoc
//
//	@Summary		Redeem an SSO ticket
//	@Description	Atomically consumes an SSO ticket and sets the cPanel session cookies. Exactly one redemption of a given ticket can succeed; everything else gets 410 Gone.
//	@Tags			SSO
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{ticket=string}	true	"Ticket"
//	@Success		200		{object}	object{success=bool,data=object{developer=object}}	"Developer profile; cpanel cookies set"
//	@Failure		410		{object}	object{success=bool,error=string,message=string}	"Ticket missing, expired, or already redeemed"
//	@Router			/cpanel/redeem-ticket [post]
func (h *SSOHandler) RedeemTicket(c *gin.Context) {
	var req struct {
		Ticket string `json:"ticket"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Ticket == "" {
		respondError(c, http.StatusBadRequest, CodeMissingCredentials, "ticket is required")
		return
	}

	dev, err := h.broker.Redeem(c.Request.Context(), req.Ticket)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	pair, err := h.devs.IssueCPanelPair(dev)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.setCPanelCookies(c, pair)
	respondOK(c, gin.H{"developer": developerJSON(dev)})
}

// Me handles GET /cpanel/me (cookie authenticated)
func (h *SSOHandler) Me(c *gin.Context) {
	developerID, ok := middleware.DeveloperIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	dev, err := h.devs.Get(developerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"developer": developerJSON(dev)})
}

// Refresh handles POST /cpanel/refresh: rotates the cookie pair using the
// refresh cookie.
func (h *SSOHandler) Refresh(c *gin.Context) {
	raw, err := c.Cookie("cpanel_refresh_token")
	if err != nil || raw == "" {
		respondError(c, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
		return
	}

	result, err := h.devs.Refresh(token.DomainCPanel, raw)
	if err != nil {
		h.clearCPanelCookies(c)
		respondServiceError(c, err)
		return
	}

	h.setCPanelCookies(c, result.Pair)
	respondOK(c, gin.H{"developer": developerJSON(result.Developer)})
}

// Logout handles POST /cpanel/logout: revokes the refresh token and clears
// both cookies.
func (h *SSOHandler) Logout(c *gin.Context) {
	if raw, err := c.Cookie("cpanel_refresh_token"); err == nil && raw != "" {
		_ = h.devs.Logout(raw)
	}
	h.clearCPanelCookies(c)
	respondOK(c, gin.H{"message": "Logged out"})
}
