package main

import (
	"strings"
	"time"

	"photoserver/auth"
	"photoserver/config"
	"photoserver/db"
	"photoserver/faces"
	"photoserver/handlers"
	"photoserver/logutils"
	"photoserver/metrics"
	"photoserver/models"
	"photoserver/refphoto"
	"photoserver/storage"
	"photoserver/utils"
	"photoserver/web"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
)

const staticCacheTime = 3600

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logutils.Log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.InsecureJWTSecret() {
		logutils.Log.Warn("JWT_SECRET is not set, using the debug default")
	}
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(cfg)
	if err != nil {
		logutils.Log.Fatalf("Could not open database: %v", err)
	}
	if err = models.Migrate(database); err != nil {
		logutils.Log.Fatalf("Could not migrate database: %v", err)
	}
	store, err := storage.NewObjectStore(storage.BucketFromConfig(cfg), filesBaseURL(cfg))
	if err != nil {
		logutils.Log.Fatalf("Could not set up object storage: %v", err)
	}
	if cfg.MLAPIBaseURL == "" {
		logutils.Log.Warn("ML_API_BASE_URL is not set, face matching is disabled")
	}

	h := &handlers.Handlers{
		DB:     database,
		Config: cfg,
		Store:  store,
		Refs:   refphoto.NewResolver(store, storage.NewDiskStorage(cfg.RefCacheDir, "")),
		ML:     faces.NewClient(cfg.MLAPIBaseURL, cfg.MatchThreshold),
		Tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
	}

	router := gin.New()
	_ = router.SetTrustedProxies([]string{})
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(logutils.Recovery(), logutils.Middleware(), metrics.Middleware())
	if cfg.DebugMode {
		router.Use(utils.ErrorLogMiddleware)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        30 * 24 * time.Hour,
	}))
	if !cfg.DebugMode {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/files/", "/metrics"})))
	}

	// API, no cache
	api := router.Group("/", (&utils.CacheRouter{CacheTime: utils.CacheNoCache}).Handler())
	h.Register(api)
	router.GET("/metrics", metrics.Handler())
	router.GET("/robots.txt", web.DisallowRobots)
	if disk, ok := store.(*storage.DiskStorage); ok {
		router.GET("/files/*key", (&utils.CacheRouter{CacheTime: staticCacheTime, Public: true}).Handler(), web.Files(disk))
	}
	router.NoRoute((&web.Frontend{Dir: cfg.FrontendDir}).Serve)

	if cfg.TLSDomains != "" {
		err = autotls.Run(router, strings.Split(cfg.TLSDomains, ",")...)
	} else {
		logutils.Log.Infof("Listening on %s", cfg.BindAddress)
		err = router.Run(cfg.BindAddress)
	}
	logutils.Log.Fatalf("Server stopped: %v", err)
}

// filesBaseURL is the public prefix of objects kept on local disk
func filesBaseURL(cfg *config.Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL + "/files"
	}
	addr := cfg.BindAddress
	if strings.HasPrefix(addr, "0.0.0.0:") || strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1:" + addr[strings.LastIndex(addr, ":")+1:]
	}
	return "http://" + addr + "/files"
}
