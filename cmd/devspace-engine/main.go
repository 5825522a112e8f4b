package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chiwei-platform/devspace-engine/internal/adapter/agentapi"
	"github.com/chiwei-platform/devspace-engine/internal/adapter/gitbackup"
	httpadapter "github.com/chiwei-platform/devspace-engine/internal/adapter/http"
	"github.com/chiwei-platform/devspace-engine/internal/adapter/kubernetes"
	"github.com/chiwei-platform/devspace-engine/internal/config"
	"github.com/chiwei-platform/devspace-engine/internal/service"
)

func main() {
	cfg := config.Load()
	logger := slog.Default()

	cs, err := kubernetes.NewClientset(cfg.KubeconfigPath)
	if err != nil {
		slog.Error("failed to build k8s client", "error", err)
		os.Exit(1)
	}

	// Cluster adapters
	translator := kubernetes.NewStatefulSetTranslator(cs, kubernetes.TranslatorConfig{
		Namespace:      cfg.Namespace,
		WorkspaceImage: cfg.WorkspaceImage,
		ClusterDomain:  cfg.ClusterDomain,
		BaseDomain:     cfg.BaseDomain,
	})
	reconciler := kubernetes.NewReconciler(cs, kubernetes.ReconcilerConfig{
		Namespace:     cfg.Namespace,
		ClusterDomain: cfg.ClusterDomain,
		BaseDomain:    cfg.BaseDomain,
	})
	credStore := kubernetes.NewSecretCredentialStore(cs, cfg.Namespace)
	backupStore := gitbackup.NewStore(gitbackup.Config{
		RepoURL:    cfg.BackupRepoURL,
		Branch:     cfg.BackupBranch,
		Auth:       cfg.BackupAuth,
		Token:      cfg.BackupToken,
		SSHKey:     cfg.BackupSSHKey,
		SSHKeyPath: cfg.BackupSSHKeyPath,
		WorkDir:    cfg.BackupWorkDir,
	})

	// Services
	projectSvc := service.NewProjectService(translator, reconciler, service.ProjectDefaults{
		CPURequest:    cfg.DefaultCPURequest,
		MemoryRequest: cfg.DefaultMemoryRequest,
		StorageSize:   cfg.DefaultStorageSize,
		StorageClass:  cfg.DefaultStorageClass,
	}, logger)
	credSvc := service.NewCredentialService(credStore, projectSvc, logger)
	backupSvc := service.NewBackupService(reconciler, backupStore,
		time.Duration(cfg.BackupIntervalHours)*time.Hour, logger)
	msgSvc := service.NewMessageService(projectSvc, agentapi.NewClient(), logger)

	// The cluster is the only durable store: rebuild the project directory
	// from live objects before serving a single request.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := projectSvc.Bootstrap(ctx); err != nil {
		slog.Error("startup reconcile failed", "error", err)
		os.Exit(1)
	}

	// Backup scheduler (optional, needs a configured remote)
	if cfg.BackupRepoURL != "" {
		if err := backupSvc.Initialize(ctx); err != nil {
			slog.Warn("backup remote unavailable, scheduler disabled", "error", err)
		} else {
			go backupSvc.Run(ctx)
		}
	} else {
		slog.Info("no backup remote configured, scheduler disabled")
	}

	handler := httpadapter.NewRouter(
		httpadapter.NewProjectHandler(projectSvc, msgSvc),
		httpadapter.NewCredentialHandler(credSvc),
		httpadapter.NewBackupHandler(backupSvc),
		cfg.APIToken,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}
