package controllers

import (
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/utils"
)

// MessageController stores contact form submissions
type MessageController struct {
	Collection *mongo.Collection
	Logger     *zap.Logger
}

// NewMessageController creates a new MessageController
func NewMessageController(db *mongo.Database, logger *zap.Logger) *MessageController {
	return &MessageController{Collection: db.Collection("messages"), Logger: logger}
}

// MessageList wraps a message listing with its size
type MessageList struct {
	Total int              `json:"total"`
	Data  []models.Message `json:"data"`
}

// CreateMessage saves a contact form submission
func (mc *MessageController) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := decodeJSON(r, &msg); err != nil {
		utils.WriteError(w, mc.Logger, err)
		return
	}
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Message = strings.TrimSpace(msg.Message)
	if err := utils.Validate(msg); err != nil {
		utils.WriteError(w, mc.Logger, err)
		return
	}
	msg.ID = primitive.NilObjectID
	msg.CreatedAt = time.Now().UTC()

	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := mc.Collection.InsertOne(ctx, msg)
	if err != nil {
		utils.WriteError(w, mc.Logger, utils.PersistenceError("Server error while saving message", err))
		return
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, msg)
}

// GetMessages lists submissions newest first (Admin only)
func (mc *MessageController) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := mc.Collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		utils.WriteError(w, mc.Logger, utils.PersistenceError("Server error while fetching messages", err))
		return
	}
	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		utils.WriteError(w, mc.Logger, utils.PersistenceError("Server error while fetching messages", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, MessageList{Total: len(messages), Data: messages})
}
