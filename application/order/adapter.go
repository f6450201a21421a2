package order

import (
	"context"

	"order-service/domain/order"
	"order-service/infrastructure/resilience/circuitbreaker"
	"order-service/pkg/contracts"
	"order-service/pkg/logger"

	"go.uber.org/zap"
)

// Requester is the request/response half of the messaging gateway.
type Requester interface {
	SendAndReceive(ctx context.Context, topic string, request, response any) error
}

// userVerifierAdapter 通过消息网关询问用户服务，调用受 user-service 熔断器保护。
// 熔断打开、超时或请求失败时降级为"用户不存在"。
type userVerifierAdapter struct {
	requester Requester
	breakers  *circuitbreaker.Registry
	log       *zap.Logger
}

func NewUserVerifier(requester Requester, breakers *circuitbreaker.Registry, log *zap.Logger) order.UserVerifier {
	if log == nil {
		log = logger.Get()
	}
	return &userVerifierAdapter{requester: requester, breakers: breakers, log: log.Named("user.verify")}
}

func (a *userVerifierAdapter) UserExists(ctx context.Context, userID order.UserID) (bool, error) {
	log := logger.FromContext(ctx, a.log).With(zap.String("user_id", userID.String()))

	return circuitbreaker.Execute(ctx, a.breakers, circuitbreaker.DependencyUserService,
		func(ctx context.Context) (bool, error) {
			var resp contracts.UserVerifyResponse
			req := contracts.UserVerifyRequest{UserID: userID.String()}
			if err := a.requester.SendAndReceive(ctx, contracts.TopicUserVerify, req, &resp); err != nil {
				return false, err
			}
			log.Debug("user verification response", zap.Bool("exists", resp.Exists))
			return resp.Exists, nil
		},
		func(_ context.Context, cause error) (bool, error) {
			log.Warn("user-service unavailable, treating user as missing", zap.Error(cause))
			return false, nil
		},
	)
}
