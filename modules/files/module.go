package files

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketName is the fs-jetstream bucket holding uploads.
const BucketName = "uploads"

// Module implements blob storage using the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	bucket  fsjetstream.FileStoragePort
	service *Service
	limits  map[Kind]Limit
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new files module. Nil limits use DefaultLimits.
func NewModule(limits map[Kind]Limit, logger types.Logger) *Module {
	return &Module{
		limits: limits,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "files"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
	m.logger.Info("Received storage plugin", "alias", alias)
}

// Start resolves the uploads bucket.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	m.bucket = m.storage.Bucket(BucketName)
	if m.bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}

	m.service = NewService(m.bucket, m.limits)

	chat, _ := m.service.Limit(KindChatFile)
	avatar, _ := m.service.Limit(KindProfilePic)
	m.logger.Info("Files module started",
		"bucket", BucketName,
		"maxChatFileBytes", chat.MaxBytes,
		"maxAvatarBytes", avatar.MaxBytes)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Files module stopped")
	return nil
}

// Health reports whether the bucket can be listed.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	count, err := m.service.Count()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("bucket list failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"bucket": BucketName,
			"blobs":  count,
		},
	}
}

// Service returns the blob service instance.
func (m *Module) Service() *Service {
	return m.service
}
