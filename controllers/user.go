package controllers

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/utils"
)

// UserController handles user-related requests
type UserController struct {
	Collection *mongo.Collection
	Tokens     utils.Tokens
	Logger     *zap.Logger
}

// NewUserController creates a new UserController
func NewUserController(db *mongo.Database, tokens utils.Tokens, logger *zap.Logger) *UserController {
	return &UserController{Collection: db.Collection("users"), Tokens: tokens, Logger: logger}
}

type registration struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register handles user registration. Sign-ups always get the user role.
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var in registration
	if err := decodeJSON(r, &in); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := utils.Validate(in); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error hashing password", err))
		return
	}
	user := models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: hashed,
		Role:     models.RoleUser,
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := uc.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		utils.WriteError(w, uc.Logger, utils.ValidationError("Email already registered"))
		return
	}
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error creating user", err))
		return
	}
	user.ID, _ = res.InsertedID.(primitive.ObjectID)
	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user":    user,
	})
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(r, &creds); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if err := utils.Validate(creds); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	var user models.User
	err := uc.Collection.FindOne(ctx, bson.M{"email": creds.Email}).Decode(&user)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error loading user", err))
		return
	}
	if err != nil || !utils.CheckPassword(user.Password, creds.Password) {
		utils.WriteError(w, uc.Logger, utils.UnauthorizedError("Invalid email or password"))
		return
	}

	token, err := uc.Tokens.Generate(user.Email, user.Role)
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error generating token", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"role":    user.Role,
		"user":    user,
	})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.WriteError(w, uc.Logger, utils.UnauthorizedError("Unauthorized"))
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	err := uc.Collection.FindOne(ctx, bson.M{"email": claims.Email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, uc.Logger, utils.NotFoundError("User not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error loading user", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// GetUsers lists every account (Admin only)
func (uc *UserController) GetUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cursor, err := uc.Collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error fetching users", err))
		return
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error reading users", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

// UpdateUserRole changes an account's role (Admin only)
func (uc *UserController) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}
	var body struct {
		Role string `json:"role" validate:"required,oneof=user admin manager"`
	}
	if err := decodeJSON(r, &body); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}
	body.Role = strings.ToLower(strings.TrimSpace(body.Role))
	if err := utils.Validate(body); err != nil {
		utils.WriteError(w, uc.Logger, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	var updated models.User
	err = uc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": body.Role}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.WriteError(w, uc.Logger, utils.NotFoundError("User not found"))
		return
	}
	if err != nil {
		utils.WriteError(w, uc.Logger, utils.PersistenceError("Error updating user", err))
		return
	}
	uc.Logger.Info("user role changed", zap.String("user_id", id.Hex()), zap.String("role", body.Role))
	utils.WriteJSON(w, http.StatusOK, updated)
}
