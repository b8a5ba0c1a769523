package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

const tmtHost = "tmt.tencentcloudapi.com"

// TMTConfig configures the Tencent Machine Translation backend.
type TMTConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	ProjectID int64
	// Untranslated is passed as UntranslatedText so the service keeps the
	// segment delimiter verbatim.
	Untranslated string
	// Endpoint overrides tmt.tencentcloudapi.com, e.g. "127.0.0.1:8080".
	Endpoint string
	// Insecure talks plain HTTP to Endpoint.
	Insecure bool
	Timeout  time.Duration
}

// TMT translates text through Tencent Cloud's TextTranslate API.
type TMT struct {
	cfg    TMTConfig
	client *tmt.Client
}

// TMTError is an error object returned by the TMT API.
type TMTError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *TMTError) Error() string {
	return fmt.Sprintf("tmt %s: %s (request %s)", e.Code, e.Message, e.RequestID)
}

// NewTMT validates cfg and returns a TMT client.
func NewTMT(cfg TMTConfig) (*TMT, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("tmt: secret id and key are required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("tmt: region is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tmtHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = cfg.Endpoint
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = max(1, int(cfg.Timeout/time.Second))
	if cfg.Insecure {
		cpf.HttpProfile.Scheme = "HTTP"
	}

	client, err := tmt.NewClient(common.NewCredential(cfg.SecretID, cfg.SecretKey), cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("tmt: create client: %w", err)
	}
	return &TMT{cfg: cfg, client: client}, nil
}

func (t *TMT) Translate(ctx context.Context, text, source, target string) (string, error) {
	req := tmt.NewTextTranslateRequest()
	req.SourceText = common.StringPtr(text)
	req.Source = common.StringPtr(source)
	req.Target = common.StringPtr(target)
	req.ProjectId = common.Int64Ptr(t.cfg.ProjectID)
	if t.cfg.Untranslated != "" {
		req.UntranslatedText = common.StringPtr(t.cfg.Untranslated)
	}

	resp, err := t.client.TextTranslateWithContext(ctx, req)
	if err != nil {
		var sdkErr *sdkerrors.TencentCloudSDKError
		if errors.As(err, &sdkErr) {
			return "", &TMTError{Code: sdkErr.GetCode(), Message: sdkErr.GetMessage(), RequestID: sdkErr.GetRequestId()}
		}
		return "", fmt.Errorf("tmt: request failed: %w", err)
	}
	if resp.Response == nil || resp.Response.TargetText == nil {
		return "", fmt.Errorf("tmt: response carries no TargetText")
	}
	return *resp.Response.TargetText, nil
}
