package main

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/models/reports"
	"github.com/mmdatafocus/pos_ledger/utils"
	"github.com/mmdatafocus/pos_ledger/workflow"
	"github.com/sirupsen/logrus"
)

// ledgerServer runs every ledger call on one dispatcher. The ledger itself
// holds no locks.
type ledgerServer struct {
	mu       sync.Mutex
	sys      *models.System
	rollover *workflow.ArchiveRollover
	logger   *logrus.Logger
}

func newLedgerServer(sys *models.System, rollover *workflow.ArchiveRollover, logger *logrus.Logger) *ledgerServer {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &ledgerServer{sys: sys, rollover: rollover, logger: logger}
}

func (s *ledgerServer) dispatch(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *ledgerServer) setCatalog(c models.ArchiveCatalog) {
	s.mu.Lock()
	s.rollover.Catalog = c
	s.mu.Unlock()
}

func (s *ledgerServer) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sys.Close()
}

func statusForLedgerError(err error) int {
	var verErr *models.FormatVersionError
	switch {
	case errors.Is(err, models.ErrDrawerNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPrecondition), errors.Is(err, models.ErrWriteRefused):
		return http.StatusConflict
	case errors.As(err, &verErr), errors.Is(err, models.ErrArchiveCorrupt):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *ledgerServer) fail(c *gin.Context, funcName string, data any, err error) {
	status := statusForLedgerError(err)
	if status == http.StatusInternalServerError {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		config.LogError(s.logger, "server.go", funcName, c.Request.URL.Path, gin.H{"data": data, "user_id": userId}, err)
	}
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	c.JSON(status, gin.H{"error": err.Error(), "correlation_id": cid})
}

func (s *ledgerServer) listArchivesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var out []models.ArchiveSummary
		_ = s.dispatch(func() error {
			for _, a := range s.sys.Archives.All() {
				out = append(out, a.Summary())
			}
			return nil
		})
		if out == nil {
			out = []models.ArchiveSummary{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *ledgerServer) getArchiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid archive id"})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "GET /archives/:id")
		defer span.End()

		var summary *models.ArchiveSummary
		err = s.dispatch(func() error {
			var err error
			summary, err = reports.ArchiveSummary(ctx, s.sys, id)
			return err
		})
		if err != nil {
			s.fail(c, "getArchiveHandler", id, err)
			return
		}
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "archive not found"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

type sealRequest struct {
	End *time.Time `json:"end"`
}

func (s *ledgerServer) sealArchiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sealRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		var end time.Time
		if req.End != nil {
			end = *req.End
		}

		var res *workflow.RolloverResult
		err := s.dispatch(func() error {
			var err error
			res, err = s.rollover.Run(c.Request.Context(), end)
			return err
		})
		if err != nil {
			s.fail(c, "sealArchiveHandler", req, err)
			return
		}
		body := gin.H{
			"archive":        res.Archive.Summary(),
			"object_name":    res.ObjectName,
			"message_id":     res.MessageId,
			"cataloged":      res.Cataloged,
			"correlation_id": res.CorrelationId,
		}
		if res.Err != nil {
			body["follow_up_error"] = res.Err.Error()
		}
		c.JSON(http.StatusCreated, body)
	}
}

func (s *ledgerServer) listDrawersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := []*reports.DrawerTotals{}
		_ = s.dispatch(func() error {
			for _, d := range s.sys.Drawers() {
				out = append(out, reports.NewDrawerTotals(d))
			}
			return nil
		})
		c.JSON(http.StatusOK, out)
	}
}

func (s *ledgerServer) drawerReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var rows []*reports.DrawerReportRow
		_ = s.dispatch(func() error {
			rows = reports.BuildDrawerReport(s.sys.Drawers())
			return nil
		})
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=drawers.xlsx")
		if err := reports.WriteDrawerReport(c.Writer, rows); err != nil {
			config.LogError(s.logger, "server.go", "drawerReportHandler", "WriteDrawerReport", nil, err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

type drawerActionRequest struct {
	UserId int `json:"user_id" binding:"required,gt=0"`
}

// drawerAction parses the serial and acting user, then runs fn on the
// dispatcher with the drawer the serial names.
func (s *ledgerServer) drawerAction(c *gin.Context, funcName string, needUser bool, fn func(d *models.Drawer, user *models.Employee) (gin.H, error)) {
	serial, err := strconv.Atoi(c.Param("serial"))
	if err != nil || serial <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drawer serial"})
		return
	}
	var user *models.Employee
	if needUser {
		var req drawerActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		user = &models.Employee{ID: req.UserId}
		c.Request = c.Request.WithContext(utils.SetUserIdInContext(c.Request.Context(), req.UserId))
	}

	var body gin.H
	archiveID := 0
	err = s.dispatch(func() error {
		d := s.sys.FindDrawer(serial)
		if d == nil {
			return models.ErrDrawerNotFound
		}
		var err error
		body, err = fn(d, user)
		archiveID = d.ArchiveID
		return err
	})
	if err != nil {
		s.fail(c, funcName, serial, err)
		return
	}
	if archiveID != 0 {
		if err := reports.InvalidateArchiveSummary(c.Request.Context(), s.sys.Host, archiveID); err != nil {
			config.LogError(s.logger, "server.go", funcName, "InvalidateArchiveSummary", archiveID, err)
		}
	}
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	body["correlation_id"] = cid
	c.JSON(http.StatusOK, body)
}

func (s *ledgerServer) pullDrawerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.drawerAction(c, "pullDrawerHandler", true, func(d *models.Drawer, user *models.Employee) (gin.H, error) {
			next, err := d.Pull(s.sys, user)
			if err != nil {
				return nil, err
			}
			body := gin.H{"drawer": reports.NewDrawerTotals(d)}
			if next != nil {
				body["replacement"] = reports.NewDrawerTotals(next)
			}
			return body, nil
		})
	}
}

func (s *ledgerServer) balanceDrawerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.drawerAction(c, "balanceDrawerHandler", true, func(d *models.Drawer, user *models.Employee) (gin.H, error) {
			if err := d.Balance(s.sys, user); err != nil {
				return nil, err
			}
			return gin.H{"drawer": reports.NewDrawerTotals(d)}, nil
		})
	}
}

func (s *ledgerServer) mergeServerBanksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.drawerAction(c, "mergeServerBanksHandler", false, func(d *models.Drawer, _ *models.Employee) (gin.H, error) {
			merged, err := d.MergeServerBanks(s.sys)
			if err != nil {
				return nil, err
			}
			return gin.H{"drawer": reports.NewDrawerTotals(d), "merged": merged}, nil
		})
	}
}

type mediaRow struct {
	Kind   int    `json:"kind" binding:"gte=0"`
	ID     int    `json:"id" binding:"gt=0"`
	Name   string `json:"name" binding:"required"`
	Amount int    `json:"amount"`
	Flags  int    `json:"flags"`
}

type settingsRequest struct {
	Tax   models.TaxSettings `json:"tax"`
	Media []mediaRow         `json:"media" binding:"dive"`
}

func settingsBody(st *models.Settings) settingsRequest {
	body := settingsRequest{Tax: st.Tax, Media: []mediaRow{}}
	for _, kind := range models.MediaKinds() {
		for _, mi := range st.Media[kind] {
			body.Media = append(body.Media, mediaRow{Kind: int(kind), ID: mi.ID, Name: mi.Name, Amount: mi.Amount, Flags: mi.Flags})
		}
	}
	return body
}

func (s *ledgerServer) getSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body settingsRequest
		_ = s.dispatch(func() error {
			body = settingsBody(s.sys.Settings)
			return nil
		})
		c.JSON(http.StatusOK, body)
	}
}

// putSettingsHandler replaces the live tax settings and media catalog.
func (s *ledgerServer) putSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		next := models.NewSettings()
		next.Tax = req.Tax
		for _, row := range req.Media {
			kind := models.MediaKind(row.Kind)
			if !kind.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media kind"})
				return
			}
			if next.Media.Find(kind, row.ID) != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate media id"})
				return
			}
			next.Media[kind] = append(next.Media[kind], &models.MediaInfo{Kind: kind, ID: row.ID, Name: row.Name, Amount: row.Amount, Flags: row.Flags})
		}

		if err := s.dispatch(func() error { return s.sys.UpdateSettings(next) }); err != nil {
			s.fail(c, "putSettingsHandler", req, err)
			return
		}
		c.JSON(http.StatusOK, settingsBody(next))
	}
}
