package decision

import (
	"fmt"
	"strings"
	"sync"

	"autotrader/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// replySchema 约束 oracle 回复的结构；数值允许以字符串给出。
const replySchema = `{
  "type": "object",
  "required": ["action", "confidence"],
  "properties": {
    "action": {"type": "string", "pattern": "(?i)^\\s*(buy|sell|hold)\\s*$"},
    "confidence": {"type": ["number", "string"]},
    "risk_level": {"type": ["string", "null"]},
    "price_target": {"type": ["number", "string", "null"]},
    "stop_loss": {"type": ["number", "string", "null"]},
    "reasoning": {"type": ["string", "null"]},
    "rationale": {"type": ["string", "null"]}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func replyValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.json", strings.NewReader(replySchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("decision.json")
	})
	return schema, schemaErr
}

// ParseReply 从 oracle 的文本回复中解析决策（不含时间戳）。
// confidence 在 (1,100] 时按百分比处理。
func ParseReply(raw string) (Decision, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return Decision{}, fmt.Errorf("%w: no json object in reply", ErrOracleUnavailable)
	}
	if !gjson.Valid(obj) {
		return Decision{}, fmt.Errorf("%w: json 格式无效", ErrOracleUnavailable)
	}
	parsed := gjson.Parse(obj)
	sch, err := replyValidator()
	if err != nil {
		return Decision{}, fmt.Errorf("compile reply schema: %w", err)
	}
	if err := sch.Validate(parsed.Value()); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	action, err := ParseAction(parsed.Get("action").String())
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	conf, err := cast.ToFloat64E(parsed.Get("confidence").Value())
	if err != nil {
		return Decision{}, fmt.Errorf("%w: confidence: %v", ErrOracleUnavailable, err)
	}
	if conf > 1 && conf <= 100 {
		conf /= 100
	}
	if conf < 0 || conf > 1 {
		return Decision{}, fmt.Errorf("%w: confidence %v out of range", ErrOracleUnavailable, conf)
	}
	risk, err := ParseRiskLevel(parsed.Get("risk_level").String())
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	rationale := parsed.Get("rationale").String()
	if rationale == "" {
		rationale = parsed.Get("reasoning").String()
	}
	d := Decision{
		Action:     action,
		Confidence: conf,
		Rationale:  strings.TrimSpace(rationale),
		RiskLevel:  risk,
	}
	if d.PriceTarget, err = optionalPrice(parsed.Get("price_target")); err != nil {
		return Decision{}, fmt.Errorf("%w: price_target: %v", ErrOracleUnavailable, err)
	}
	if d.StopLoss, err = optionalPrice(parsed.Get("stop_loss")); err != nil {
		return Decision{}, fmt.Errorf("%w: stop_loss: %v", ErrOracleUnavailable, err)
	}
	return d, nil
}

// optionalPrice 缺失、null 或 0 视为未给出。
func optionalPrice(v gjson.Result) (*float64, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	f, err := cast.ToFloat64E(v.Value())
	if err != nil {
		return nil, err
	}
	if f == 0 {
		return nil, nil
	}
	if f < 0 {
		return nil, fmt.Errorf("negative price %v", f)
	}
	return &f, nil
}
