package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
)

// UsuarioModel maps the persisted user row. Only the columns the relay
// touches are declared; the full schema is owned by the API service.
type UsuarioModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Nombre         string    `gorm:"column:nombre"`
	FotoPerfil     string    `gorm:"column:foto_perfil"`
	EstaEnLinea    bool      `gorm:"column:esta_en_linea"`
	UltimaConexion time.Time `gorm:"column:ultima_conexion"`
}

func (UsuarioModel) TableName() string { return "usuarios" }

func (m *UsuarioModel) ToDomain() *domain.User {
	return &domain.User{
		ID:             m.ID,
		Nombre:         m.Nombre,
		FotoPerfil:     m.FotoPerfil,
		EstaEnLinea:    m.EstaEnLinea,
		UltimaConexion: m.UltimaConexion,
	}
}

// ChatParticipanteModel maps the chat membership row.
type ChatParticipanteModel struct {
	ChatID    string `gorm:"column:chat_id;primaryKey"`
	UsuarioID string `gorm:"column:usuario_id;primaryKey"`
	Rol       string `gorm:"column:rol"`
}

func (ChatParticipanteModel) TableName() string { return "chat_participantes" }

// UsuarioBloqueadoModel maps one direction of the block list.
type UsuarioBloqueadoModel struct {
	UsuarioID   string `gorm:"column:usuario_id;primaryKey"`
	BloqueadoID string `gorm:"column:bloqueado_id;primaryKey"`
}

func (UsuarioBloqueadoModel) TableName() string { return "usuarios_bloqueados" }

// GormChatStore implements ChatStore using GORM.
type GormChatStore struct {
	db *gorm.DB
}

// NewGormChatStore creates a new GORM-based chat store.
func NewGormChatStore(db *gorm.DB) *GormChatStore {
	return &GormChatStore{db: db}
}

func (r *GormChatStore) ChatIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var chatIDs []string
	result := r.db.WithContext(ctx).
		Model(&ChatParticipanteModel{}).
		Where("usuario_id = ?", userID).
		Pluck("chat_id", &chatIDs)
	if result.Error != nil {
		return nil, result.Error
	}
	return chatIDs, nil
}

func (r *GormChatStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var model UsuarioModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormChatStore) IsBlocked(ctx context.Context, userID, blockedID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&UsuarioBloqueadoModel{}).
		Where("usuario_id = ? AND bloqueado_id = ?", userID, blockedID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (r *GormChatStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&UsuarioModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"esta_en_linea":   online,
			"ultima_conexion": at,
		})
	return result.Error
}
