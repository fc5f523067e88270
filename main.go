package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"doi-hand/agency"
	"doi-hand/agency/crossref"
	"doi-hand/agency/datacite"
	"doi-hand/config"
	"doi-hand/models"
	"doi-hand/repo"
	"doi-hand/services"
	"doi-hand/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	doisMintedCounter       prometheus.Counter
	depositsEnqueuedCounter prometheus.Counter
)

func init() {
	doisMintedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dois_minted_total",
			Help: "Total number of DOI records created by assignment.",
		},
	)
	depositsEnqueuedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposits_enqueued_total",
			Help: "Total number of background deposit jobs enqueued.",
		},
	)
	prometheus.MustRegister(doisMintedCounter, depositsEnqueuedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to DOI database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		db.Migrator().DropTable(&models.Doi{}, &models.Galley{}, &models.Publication{}, &models.Submission{}, &models.JournalContext{}, &models.ExportArtifact{})
	}
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.JournalContext{}, &models.Submission{}, &models.Publication{}, &models.Galley{}, &models.Doi{}, &models.ExportArtifact{})

	// Seeding
	seedDefaultContext(db, logging)

	// Setup Agencies
	agencies := make(map[string]agency.Agency)
	for _, name := range cfg.AgencyNames() {
		switch name {
		case "crossref":
			agencies[name] = crossref.NewClient(cfg, logging)
		case "datacite":
			agencies[name] = datacite.NewClient(cfg, logging)
		default:
			logging.Warn("Unknown agency in config", zap.String("agency_name", name))
		}
	}
	if len(agencies) == 0 {
		logging.Warn("No agency adapters enabled. Export and deposit operations will fail.")
	}
	logging.Info("Active agency adapters loaded", zap.Strings("agencies", cfg.AgencyNames()))

	// Setup Stores & Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	doiStore := repo.NewDoiStore(db)
	subStore := repo.NewSubmissionStore(db)
	ctxStore := repo.NewContextStore(db)
	artifactStore := repo.NewArtifactStore(db, s3Client, cfg)

	resolver := services.NewResolver(doiStore, logging,
		repo.NewPublicationHandle(db),
		repo.NewGalleyHandle(db),
	)
	lifecycle := services.NewLifecycleService(doiStore, subStore, resolver, logging)

	dispatcher := services.NewDepositDispatcher(cfg.DepositWorkers, cfg.DepositMaxRetries, logging)
	deposit := services.NewDepositService(doiStore, subStore, ctxStore, artifactStore, agencies, dispatcher, logging)
	dispatcher.Start(deposit.RunDeposit)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupContextRoutes(router, db, logging)
	setupSubmissionRoutes(router, db, logging)
	setupDoiRoutes(router, db, resolver, logging)
	setupDoiManagementRoutes(router, db, lifecycle, deposit, logging)
	setupExportRoutes(router, db, artifactStore, logging)

	// Setup Cron: Reconciliation-Sweep für nie bestätigte Deposits
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled deposit-all sweep...")
		var contexts []models.JournalContext
		if err := db.Where("registration_agency <> '' AND doi_prefix <> ''").Find(&contexts).Error; err != nil {
			logging.Error("Sweep context query failed", zap.Error(err))
			return
		}
		total := 0
		for i := range contexts {
			count, err := deposit.DepositAll(context.Background(), &contexts[i])
			if err != nil {
				logging.Error("Sweep failed for context", zap.Uint("context_id", contexts[i].ID), zap.Error(err))
				continue
			}
			total += count
		}
		logging.Info("Sweep completed", zap.Int("enqueued", total))
		depositsEnqueuedCounter.Add(float64(total))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// BatchRequest ist der gemeinsame Body aller Bulk-Operationen.
type BatchRequest struct {
	ContextID uint   `json:"context_id" binding:"required"`
	IDs       []uint `json:"ids" binding:"required"`
}

// loadRequestContext lädt den anfragenden Kontext oder beendet die Anfrage.
func loadRequestContext(c *gin.Context, db *gorm.DB, contextID uint) (*models.JournalContext, bool) {
	var jc models.JournalContext
	if err := db.First(&jc, contextID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return nil, false
	}
	return &jc, true
}

// respondBatch bildet das Ergebnis einer Bulk-Operation auf HTTP ab:
// 200 mit leerer failedActions-Liste bei vollem Erfolg, sonst 400.
func respondBatch(c *gin.Context, failures []services.ActionFailure) {
	if failures == nil {
		failures = []services.ActionFailure{}
	}
	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"failedActions": failures})
}

func setupDoiManagementRoutes(router *gin.Engine, db *gorm.DB, lifecycle *services.LifecycleService, deposit *services.DepositService, log *zap.Logger) {
	rg := router.Group("/dois")

	// Assignment: legt fehlende DOI-Einträge an (pro Submission unabhängig)
	rg.POST("/assign", func(c *gin.Context) {
		var req BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		jc, ok := loadRequestContext(c, db, req.ContextID)
		if !ok {
			return
		}
		created, failures, err := lifecycle.Assign(c.Request.Context(), jc, req.IDs)
		if err != nil {
			if errors.Is(err, services.ErrNoPrefixConfigured) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("DOI assignment failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		doisMintedCounter.Add(float64(created))
		respondBatch(c, failures)
	})

	markOp := func(name string, op func(ctx context.Context, jc *models.JournalContext, ids []uint) ([]services.ActionFailure, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			var req BatchRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
			jc, ok := loadRequestContext(c, db, req.ContextID)
			if !ok {
				return
			}
			failures, err := op(c.Request.Context(), jc, req.IDs)
			if err != nil {
				log.Error("Bulk DOI operation failed", zap.String("operation", name), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			respondBatch(c, failures)
		}
	}

	rg.POST("/mark-registered", markOp("mark-registered", lifecycle.MarkRegistered))
	rg.POST("/mark-unregistered", markOp("mark-unregistered", lifecycle.MarkUnregistered))
	rg.POST("/mark-stale", markOp("mark-stale", lifecycle.MarkStale))

	// Export: all-or-nothing, erzeugt ein S3-Artefakt, keine Statusänderung
	rg.POST("/export", func(c *gin.Context) {
		var req struct {
			BatchRequest
			UserID uint `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		jc, ok := loadRequestContext(c, db, req.ContextID)
		if !ok {
			return
		}
		artifact, err := deposit.Export(c.Request.Context(), jc, req.IDs, req.UserID)
		if err != nil {
			if isGateError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.JSON(http.StatusOK, artifact)
	})

	// Deposit: reiht Hintergrund-Jobs ein, DOIs werden sofort Submitted
	rg.POST("/deposit", func(c *gin.Context) {
		var req BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		jc, ok := loadRequestContext(c, db, req.ContextID)
		if !ok {
			return
		}
		count, err := deposit.Deposit(c.Request.Context(), jc, req.IDs)
		if err != nil {
			if isGateError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Deposit failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit failed"})
			return
		}
		depositsEnqueuedCounter.Add(float64(count))
		c.JSON(http.StatusAccepted, gin.H{"message": "Deposit triggered.", "enqueued": count})
	})

	// Deposit-All: kontextweiter Catch-up-Sweep
	rg.POST("/deposit-all", func(c *gin.Context) {
		var req struct {
			ContextID uint `json:"context_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		jc, ok := loadRequestContext(c, db, req.ContextID)
		if !ok {
			return
		}
		count, err := deposit.DepositAll(c.Request.Context(), jc)
		if err != nil {
			if isGateError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Deposit-all failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit-all failed"})
			return
		}
		depositsEnqueuedCounter.Add(float64(count))
		c.JSON(http.StatusAccepted, gin.H{"message": "Deposit-all sweep triggered.", "enqueued": count})
	})
}

// isGateError unterscheidet Batch-Gate-Ablehnungen von harten Fehlern.
func isGateError(err error) bool {
	return errors.Is(err, services.ErrSubmissionsNotPublished) ||
		errors.Is(err, services.ErrIncorrectContext) ||
		errors.Is(err, services.ErrNoPrefixConfigured) ||
		errors.Is(err, services.ErrNoAgencyConfigured)
}

func setupDoiRoutes(router *gin.Engine, db *gorm.DB, resolver *services.Resolver, log *zap.Logger) {
	rg := router.Group("/dois")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.Doi{})
		if v := c.Query("context_id"); v != "" {
			query = query.Where("context_id = ?", v)
		}
		if v := c.Query("status"); v != "" {
			if !models.DoiStatus(v).IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			query = query.Where("status = ?", v)
		}
		var dois []models.Doi
		if err := query.Order("created_at desc").Find(&dois).Error; err != nil {
			log.Error("Database query for dois failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, dois)
	})

	rg.GET("/:id", func(c *gin.Context) {
		var doi models.Doi
		if err := db.First(&doi, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "doi not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, doi)
	})

	// Manager legt einen nackten DOI-Eintrag an (ohne Pub-Objekt-Referenz)
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			ContextID uint   `json:"context_id" binding:"required"`
			DOI       string `json:"doi"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		doi := models.Doi{ContextID: req.ContextID, DOI: req.DOI, Status: models.DoiStatusUnregistered}
		if err := db.Create(&doi).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create doi"})
			return
		}
		c.JSON(http.StatusCreated, doi)
	})

	// Pub-Objekt-gebundene Mutationen laufen über den Resolver, damit geteilte
	// Einträge nie in-place verändert werden.
	pg := router.Group("/pub-objects")

	pg.PUT("/:type/:id/doi", func(c *gin.Context) {
		objectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var req struct {
			DoiID uint   `json:"doi_id" binding:"required"`
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "doi_id and value required"})
			return
		}
		doi, err := resolver.EditDoi(c.Request.Context(), services.PubObjectType(c.Param("type")), uint(objectID), req.DoiID, req.Value)
		if err != nil {
			respondResolverError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doi)
	})

	pg.DELETE("/:type/:id/doi", func(c *gin.Context) {
		objectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var req struct {
			DoiID uint `json:"doi_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "doi_id required"})
			return
		}
		if err := resolver.RemoveDoi(c.Request.Context(), services.PubObjectType(c.Param("type")), uint(objectID), req.DoiID); err != nil {
			respondResolverError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "doi reference removed"})
	})
}

func respondResolverError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedPubObjectType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPubObjectNotFound), errors.Is(err, services.ErrDoiNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error("Resolver operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
}

func setupContextRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/contexts")

	rg.POST("/", func(c *gin.Context) {
		var jc models.JournalContext
		if err := c.ShouldBindJSON(&jc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&jc).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create context"})
			return
		}
		c.JSON(http.StatusCreated, jc)
	})

	rg.GET("/", func(c *gin.Context) {
		var contexts []models.JournalContext
		if err := db.Find(&contexts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, contexts)
	})

	// Nur die mitgesendeten Felder aktualisieren (Präfix, Agency, Muster)
	rg.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var jc models.JournalContext
		if err := db.First(&jc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
				return
			}
			log.Error("DB error checking for context on PUT", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var updateData map[string]interface{}
		if err := c.ShouldBindJSON(&updateData); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := db.Model(&jc).Updates(updateData).Error; err != nil {
			log.Error("DB error updating context", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update context"})
			return
		}
		c.JSON(http.StatusOK, jc)
	})
}

func setupSubmissionRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/submissions")

	rg.POST("/", func(c *gin.Context) {
		var sub models.Submission
		if err := c.ShouldBindJSON(&sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&sub).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create submission"})
			return
		}
		// Denormalisierte submission_id auf Galleys nachziehen
		if err := db.Model(&models.Galley{}).
			Where("publication_id IN (?)", db.Model(&models.Publication{}).Select("id").Where("submission_id = ?", sub.ID)).
			Update("submission_id", sub.ID).Error; err != nil {
			log.Error("Failed to backfill galley submission ids", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusCreated, sub)
	})

	rg.GET("/:id", func(c *gin.Context) {
		var sub models.Submission
		if err := db.Preload("Publications.Galleys").Preload("Publications").First(&sub, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, sub)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type SubmissionQuery struct {
			ContextID uint   `json:"context_id"`
			Status    string `json:"status"`
			Limit     int    `json:"limit"`
		}
		var req SubmissionQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Submission{}).Preload("Publications.Galleys").Preload("Publications")
		if req.ContextID > 0 {
			query = query.Where("context_id = ?", req.ContextID)
		}
		if req.Status != "" {
			query = query.Where("status = ?", req.Status)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var subs []models.Submission
		if err := query.Order("created_at desc").Find(&subs).Error; err != nil {
			log.Error("Database query for submissions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, subs)
	})
}

func setupExportRoutes(router *gin.Engine, db *gorm.DB, artifacts *repo.ArtifactStore, log *zap.Logger) {
	rg := router.Group("/exports")

	// Download nur für den Benutzer, der den Export angestoßen hat
	rg.GET("/:id/download", func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}
		var artifact models.ExportArtifact
		if err := db.First(&artifact, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "export not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if artifact.UserID != uint(userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "export belongs to another user"})
			return
		}
		data, err := artifacts.Fetch(c.Request.Context(), &artifact)
		if err != nil {
			log.Error("S3 download failed", zap.Uint("artifact_id", artifact.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+artifact.FileName)
		c.Data(http.StatusOK, "application/xml", data)
	})
}

// seedDefaultContext legt einen Beispiel-Kontext an, wenn noch keiner existiert.
func seedDefaultContext(db *gorm.DB, log *zap.Logger) {
	var count int64
	db.Model(&models.JournalContext{}).Count(&count)
	if count > 0 {
		return
	}
	jc := models.JournalContext{
		Name:            "Journal of Curcumin Studies",
		Initials:        "jcs",
		EnabledDoiTypes: "publication,galley",
	}
	if err := db.Create(&jc).Error; err != nil {
		log.Error("Failed to seed default context", zap.Error(err))
		return
	}
	log.Info("Seeded default context", zap.String("initials", jc.Initials))
}
