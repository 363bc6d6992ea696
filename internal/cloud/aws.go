// SPDX-License-Identifier: MPL-2.0

package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	gatewaytypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Compile-time interface check
var _ ControlPlane = (*AWSPlane)(nil)

// AWSPlane is the production ControlPlane backed by the AWS APIs:
// IAM for identities, Lambda for functions, API Gateway (REST) for the
// HTTP front door, STS for the credential probe.
type AWSPlane struct {
	region  string
	iam     *iam.Client
	lambda  *lambda.Client
	gateway *apigateway.Client
	sts     *sts.Client
}

// NewAWSPlane builds an AWSPlane using the default credential chain
// (environment, shared config, instance metadata).
func NewAWSPlane(ctx context.Context, region string) (*AWSPlane, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return &AWSPlane{
		region:  region,
		iam:     iam.NewFromConfig(cfg),
		lambda:  lambda.NewFromConfig(cfg),
		gateway: apigateway.NewFromConfig(cfg),
		sts:     sts.NewFromConfig(cfg),
	}, nil
}

// Region reports the region this control plane operates in.
func (p *AWSPlane) Region() string { return p.region }

// VerifyCaller probes the configured credentials with a read-only call.
func (p *AWSPlane) VerifyCaller(ctx context.Context) (*CallerIdentity, error) {
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("credential probe failed: %w", err)
	}
	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
	}, nil
}

// GetIdentity looks up an execution role by name.
func (p *AWSPlane) GetIdentity(ctx context.Context, name string) (*Identity, error) {
	out, err := p.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("role %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get role %q: %w", name, err)
	}
	return &Identity{Name: name, Locator: aws.ToString(out.Role.Arn)}, nil
}

// CreateIdentity creates an execution role with the given trust policy.
func (p *AWSPlane) CreateIdentity(ctx context.Context, name, trustPolicy string) (*Identity, error) {
	out, err := p.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String("execution role created by fnup"),
	})
	if err != nil {
		return nil, fmt.Errorf("create role %q: %w", name, err)
	}
	return &Identity{Name: name, Locator: aws.ToString(out.Role.Arn)}, nil
}

// AttachExecutionPolicy attaches the baseline execution policy to a role.
func (p *AWSPlane) AttachExecutionPolicy(ctx context.Context, name string) error {
	_, err := p.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(BaselineExecutionPolicy),
	})
	if err != nil {
		return fmt.Errorf("attach policy to role %q: %w", name, err)
	}
	return nil
}

// GetFunction looks up a function by name.
func (p *AWSPlane) GetFunction(ctx context.Context, name string) (*Function, error) {
	out, err := p.lambda.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var notFound *lambdatypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("function %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get function %q: %w", name, err)
	}
	return functionFromConfiguration(out.Configuration), nil
}

// CreateFunction creates the function with its full configuration. This is
// the only call that supplies the execution identity.
func (p *AWSPlane) CreateFunction(ctx context.Context, spec FunctionSpec, code []byte) (*Function, error) {
	out, err := p.lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Runtime:      lambdatypes.Runtime(spec.Runtime),
		Handler:      aws.String(spec.Handler),
		Role:         aws.String(spec.RoleLocator),
		MemorySize:   aws.Int32(spec.MemoryMB),
		Timeout:      aws.Int32(spec.TimeoutSec),
		Code:         &lambdatypes.FunctionCode{ZipFile: code},
		Environment:  environmentFromEnv(spec.Env),
	})
	if err != nil {
		return nil, fmt.Errorf("create function %q: %w", spec.Name, err)
	}
	return &Function{
		Name:       aws.ToString(out.FunctionName),
		Locator:    aws.ToString(out.FunctionArn),
		Runtime:    string(out.Runtime),
		Handler:    aws.ToString(out.Handler),
		MemoryMB:   aws.ToInt32(out.MemorySize),
		TimeoutSec: aws.ToInt32(out.Timeout),
		CodeSHA:    aws.ToString(out.CodeSha256),
	}, nil
}

// UpdateFunctionCode replaces the code bundle of an existing function.
func (p *AWSPlane) UpdateFunctionCode(ctx context.Context, name string, code []byte) error {
	_, err := p.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      code,
	})
	if err != nil {
		return fmt.Errorf("update function code %q: %w", name, err)
	}
	return nil
}

// UpdateFunctionConfiguration pushes runtime, handler and limits to an
// existing function. The execution role is deliberately not touched.
func (p *AWSPlane) UpdateFunctionConfiguration(ctx context.Context, spec FunctionSpec) error {
	_, err := p.lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(spec.Name),
		Runtime:      lambdatypes.Runtime(spec.Runtime),
		Handler:      aws.String(spec.Handler),
		MemorySize:   aws.Int32(spec.MemoryMB),
		Timeout:      aws.Int32(spec.TimeoutSec),
		Environment:  environmentFromEnv(spec.Env),
	})
	if err != nil {
		return fmt.Errorf("update function configuration %q: %w", spec.Name, err)
	}
	return nil
}

// AddInvokePermission grants invoke permission keyed by statement id.
// A conflict on the statement id means the grant already exists and is
// treated as success.
func (p *AWSPlane) AddInvokePermission(ctx context.Context, functionName, statementID, principal, sourceLocator string) error {
	_, err := p.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(functionName),
		StatementId:  aws.String(statementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String(principal),
		SourceArn:    aws.String(sourceLocator),
	})
	if err != nil {
		var conflict *lambdatypes.ResourceConflictException
		if errors.As(err, &conflict) {
			return nil
		}
		return fmt.Errorf("add invoke permission %q: %w", statementID, err)
	}
	return nil
}

// GetFrontDoor looks up a REST API by name. The listing is paginated;
// names are matched exactly.
func (p *AWSPlane) GetFrontDoor(ctx context.Context, name string) (*FrontDoor, error) {
	var position *string
	for {
		out, err := p.gateway.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Limit:    aws.Int32(500),
			Position: position,
		})
		if err != nil {
			return nil, fmt.Errorf("list front doors: %w", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				return &FrontDoor{ID: aws.ToString(item.Id), Name: name}, nil
			}
		}
		if out.Position == nil {
			break
		}
		position = out.Position
	}
	return nil, fmt.Errorf("front door %q: %w", name, ErrNotFound)
}

// CreateFrontDoor creates an empty regional REST API.
func (p *AWSPlane) CreateFrontDoor(ctx context.Context, name string) (*FrontDoor, error) {
	out, err := p.gateway.CreateRestApi(ctx, &apigateway.CreateRestApiInput{
		Name: aws.String(name),
		EndpointConfiguration: &gatewaytypes.EndpointConfiguration{
			Types: []gatewaytypes.EndpointType{gatewaytypes.EndpointTypeRegional},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create front door %q: %w", name, err)
	}
	return &FrontDoor{ID: aws.ToString(out.Id), Name: name}, nil
}

// WireProxyRoute creates the {proxy+} catch-all under the API root, puts
// an ANY method with no authorization on it and binds it to the function
// via an AWS_PROXY integration.
func (p *AWSPlane) WireProxyRoute(ctx context.Context, frontDoorID, functionLocator string) error {
	resources, err := p.gateway.GetResources(ctx, &apigateway.GetResourcesInput{
		RestApiId: aws.String(frontDoorID),
	})
	if err != nil {
		return fmt.Errorf("list front door resources: %w", err)
	}

	var rootID string
	for _, res := range resources.Items {
		if aws.ToString(res.Path) == "/" {
			rootID = aws.ToString(res.Id)
			break
		}
	}
	if rootID == "" {
		return fmt.Errorf("front door %s has no root resource", frontDoorID)
	}

	proxy, err := p.gateway.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: aws.String(frontDoorID),
		ParentId:  aws.String(rootID),
		PathPart:  aws.String("{proxy+}"),
	})
	if err != nil {
		return fmt.Errorf("create catch-all resource: %w", err)
	}

	_, err = p.gateway.PutMethod(ctx, &apigateway.PutMethodInput{
		RestApiId:         aws.String(frontDoorID),
		ResourceId:        proxy.Id,
		HttpMethod:        aws.String("ANY"),
		AuthorizationType: aws.String("NONE"),
	})
	if err != nil {
		return fmt.Errorf("put catch-all method: %w", err)
	}

	invocationURI := fmt.Sprintf(
		"arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations",
		p.region, functionLocator)
	_, err = p.gateway.PutIntegration(ctx, &apigateway.PutIntegrationInput{
		RestApiId:             aws.String(frontDoorID),
		ResourceId:            proxy.Id,
		HttpMethod:            aws.String("ANY"),
		Type:                  gatewaytypes.IntegrationTypeAwsProxy,
		IntegrationHttpMethod: aws.String("POST"),
		Uri:                   aws.String(invocationURI),
	})
	if err != nil {
		return fmt.Errorf("put proxy integration: %w", err)
	}

	return nil
}

// PublishStage publishes the current routing tree to the stage label.
func (p *AWSPlane) PublishStage(ctx context.Context, frontDoorID, stage string) error {
	_, err := p.gateway.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId: aws.String(frontDoorID),
		StageName: aws.String(stage),
	})
	if err != nil {
		return fmt.Errorf("publish stage %q: %w", stage, err)
	}
	return nil
}

func functionFromConfiguration(cfg *lambdatypes.FunctionConfiguration) *Function {
	return &Function{
		Name:       aws.ToString(cfg.FunctionName),
		Locator:    aws.ToString(cfg.FunctionArn),
		Runtime:    string(cfg.Runtime),
		Handler:    aws.ToString(cfg.Handler),
		MemoryMB:   aws.ToInt32(cfg.MemorySize),
		TimeoutSec: aws.ToInt32(cfg.Timeout),
		CodeSHA:    aws.ToString(cfg.CodeSha256),
	}
}

func environmentFromEnv(env map[string]string) *lambdatypes.Environment {
	if len(env) == 0 {
		return nil
	}
	return &lambdatypes.Environment{Variables: env}
}
