package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPPort       string
	APIToken       string
	KubeconfigPath string

	// Namespace is the control namespace where workspaces, the state mirror
	// and credential secrets all live.
	Namespace     string
	ClusterDomain string
	BaseDomain    string

	DefaultCPURequest    string
	DefaultMemoryRequest string
	DefaultStorageSize   string
	DefaultStorageClass  string

	WorkspaceImage string

	BackupRepoURL       string
	BackupBranch        string
	BackupAuth          string
	BackupToken         string
	BackupSSHKey        string
	BackupSSHKeyPath    string
	BackupWorkDir       string
	BackupIntervalHours int
}

func Load() *Config {
	return &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		APIToken:       os.Getenv("API_TOKEN"),
		KubeconfigPath: getEnv("KUBECONFIG", ""),

		Namespace:     getEnv("WORKSPACE_NAMESPACE", "devspace"),
		ClusterDomain: getEnv("CLUSTER_DOMAIN", "cluster.local"),
		BaseDomain:    getEnv("BASE_DOMAIN", ""),

		DefaultCPURequest:    getEnv("DEFAULT_CPU_REQUEST", "500m"),
		DefaultMemoryRequest: getEnv("DEFAULT_MEMORY_REQUEST", "1Gi"),
		DefaultStorageSize:   getEnv("DEFAULT_STORAGE_SIZE", "10Gi"),
		DefaultStorageClass:  getEnv("DEFAULT_STORAGE_CLASS", ""),

		WorkspaceImage: getEnv("WORKSPACE_IMAGE", "harbor.local:30002/devspace/workspace:latest"),

		BackupRepoURL:       os.Getenv("BACKUP_REPO_URL"),
		BackupBranch:        getEnv("BACKUP_BRANCH", "main"),
		BackupAuth:          getEnv("BACKUP_AUTH", "none"),
		BackupToken:         os.Getenv("BACKUP_TOKEN"),
		BackupSSHKey:        os.Getenv("BACKUP_SSH_KEY"),
		BackupSSHKeyPath:    os.Getenv("BACKUP_SSH_KEY_PATH"),
		BackupWorkDir:       getEnv("BACKUP_WORK_DIR", "/var/lib/devspace/backup"),
		BackupIntervalHours: getEnvInt("BACKUP_INTERVAL_HOURS", 6),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
