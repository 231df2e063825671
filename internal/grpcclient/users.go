package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/rekognizer/internal/logging"
)

// GetUserMethod is the full gRPC method name of the user lookup. Request and response
// are google.protobuf.Struct messages.
const GetUserMethod = "/users.UserService/GetUser"

// User is the account record returned by the user service.
type User struct {
	ID          int64                  `json:"id"`
	IsActivated bool                   `json:"is_activated"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// DialUserDirectory returns a ready-to-use client for the user service.
func DialUserDirectory(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*UserDirectory, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_user_directory", "", err)
		logger.Error("failed to dial user service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewUserDirectory(conn, logger), conn, nil
}

// UserDirectory resolves user status through the user service.
type UserDirectory struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func NewUserDirectory(conn grpc.ClientConnInterface, logger *zap.Logger) *UserDirectory {
	return &UserDirectory{conn: conn, logger: logger.Named("user_directory")}
}

// GetUser fetches the user with the given id.
func (d *UserDirectory) GetUser(ctx context.Context, id int64) (*User, error) {
	requestID := logging.RequestID(ctx)

	req, err := structpb.NewStruct(map[string]interface{}{"id": id})
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.get_user", requestID, err)
	}
	resp := &structpb.Struct{}
	if err := d.conn.Invoke(ctx, GetUserMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.get_user", requestID, err)
		d.logger.Error("user lookup failed", zap.Error(wrapped), zap.Int64("user_id", id))
		return nil, wrapped
	}

	user, err := userFromStruct(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.get_user", requestID, err)
	}
	return user, nil
}

func userFromStruct(s *structpb.Struct) (*User, error) {
	fields := s.AsMap()

	rawID, ok := fields["id"].(float64)
	if !ok {
		return nil, fmt.Errorf("user response has no numeric id")
	}
	activated, _ := fields["is_activated"].(bool)

	delete(fields, "id")
	delete(fields, "is_activated")
	user := &User{ID: int64(rawID), IsActivated: activated}
	if len(fields) > 0 {
		user.Attributes = fields
	}
	return user, nil
}
