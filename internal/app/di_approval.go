package app

import (
	"fmt"

	approvalRepository "github.com/allisson/rotator/internal/approval/repository"
	approvalUseCase "github.com/allisson/rotator/internal/approval/usecase"
)

// PolicyRepository returns the approval policy repository based on database driver.
func (c *Container) PolicyRepository() (approvalUseCase.PolicyRepository, error) {
	return resolve(c, &c.policyRepositoryInit, "policyRepository", &c.policyRepository, c.initPolicyRepository)
}

// RequestRepository returns the approval request repository based on database driver.
func (c *Container) RequestRepository() (approvalUseCase.RequestRepository, error) {
	return resolve(c, &c.requestRepositoryInit, "requestRepository", &c.requestRepository, c.initRequestRepository)
}

// PolicyResolver returns the resolver that picks the policy governing a secret path.
func (c *Container) PolicyResolver() (approvalUseCase.Resolver, error) {
	return resolve(c, &c.policyResolverInit, "policyResolver", &c.policyResolver,
		func() (approvalUseCase.Resolver, error) {
			policyRepository, err := c.PolicyRepository()
			if err != nil {
				return nil, fmt.Errorf("failed to get policy repository for policy resolver: %w", err)
			}
			return approvalUseCase.NewResolver(policyRepository), nil
		})
}

// PolicyUseCase returns the approval policy use case.
func (c *Container) PolicyUseCase() (approvalUseCase.PolicyUseCase, error) {
	return resolve(c, &c.policyUseCaseInit, "policyUseCase", &c.policyUseCase, c.initPolicyUseCase)
}

func (c *Container) initPolicyRepository() (approvalUseCase.PolicyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for policy repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return approvalRepository.NewMySQLPolicyRepository(db), nil
	case "postgres":
		return approvalRepository.NewPostgreSQLPolicyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRequestRepository() (approvalUseCase.RequestRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for request repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return approvalRepository.NewMySQLRequestRepository(db), nil
	case "postgres":
		return approvalRepository.NewPostgreSQLRequestRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPolicyUseCase() (approvalUseCase.PolicyUseCase, error) {
	policyRepository, err := c.PolicyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy repository for policy use case: %w", err)
	}

	resolver, err := c.PolicyResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy resolver for policy use case: %w", err)
	}

	permissions, err := c.PermissionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get permission use case for policy use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for policy use case: %w", err)
	}

	useCase := approvalUseCase.NewPolicyUseCase(policyRepository, resolver, permissions, c.Clock(), c.Logger())
	return approvalUseCase.NewPolicyUseCaseWithMetrics(useCase, businessMetrics), nil
}
