package scenario

import (
	"fmt"
	"strings"
)

const (
	ActionDetail = "detail"
	ActionList   = "list"
	ActionCreate = "create"
)

// LoginCase is one row of login_cases after defaults and boundary values
// have been applied.
type LoginCase struct {
	CaseName        string `yaml:"case_name"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	PasswordType    string `yaml:"password_type"`
	ExpectedCode    int    `yaml:"expected_code"`
	ExpectedMsg     string `yaml:"expected_msg"`
	CheckDB         bool   `yaml:"check_db"`
	FailCountBefore *int   `yaml:"fail_count_before"`
	ExpectedStatus  string `yaml:"expected_status"`
	SensitiveCheck  bool   `yaml:"sensitive_check"`
	SkipCache       bool   `yaml:"skip_cache"`
}

func defaultLoginCase(index int) LoginCase {
	return LoginCase{
		CaseName:     fmt.Sprintf("login_case_%d", index),
		ExpectedCode: 200,
		ExpectedMsg:  "success",
	}
}

func (c *LoginCase) applyBoundaries() {
	switch c.PasswordType {
	case "long_1000":
		c.Password = strings.Repeat("a", 1000)
	case "empty":
		c.Password = ""
	}
	c.PasswordType = ""
}

func (c LoginCase) Fields() map[string]any {
	return map[string]any{
		"case_name":     c.CaseName,
		"username":      c.Username,
		"password":      c.Password,
		"expected_code": c.ExpectedCode,
		"expected_msg":  c.ExpectedMsg,
	}
}

type ProductCase struct {
	CaseName      string  `yaml:"case_name"`
	Action        string  `yaml:"action"`
	ProductID     string  `yaml:"product_id"`
	ProductName   string  `yaml:"product_name"`
	Price         float64 `yaml:"price"`
	NameType      string  `yaml:"name_type"`
	PriceType     string  `yaml:"price_type"`
	ExpectedCode  int     `yaml:"expected_code"`
	ExpectedMsg   string  `yaml:"expected_msg"`
	ExpectedStock int     `yaml:"expected_stock"`
	CheckStock    bool    `yaml:"check_stock"`
}

func defaultProductCase(index int) ProductCase {
	return ProductCase{
		CaseName:     fmt.Sprintf("product_case_%d", index),
		Action:       ActionDetail,
		ExpectedCode: 200,
	}
}

// longProductName is 200 runes, past the 150-rune catalog limit.
var longProductName = "商品名称超长测试" + strings.Repeat("a", 192)

func (c *ProductCase) applyBoundaries() {
	if c.NameType == "long_200" {
		c.ProductName = longProductName
	}
	if c.PriceType == "negative" {
		c.Price = -99.99
	}
	c.NameType = ""
	c.PriceType = ""
	c.Action = strings.ToLower(strings.TrimSpace(c.Action))
}

func (c ProductCase) Fields() map[string]any {
	return map[string]any{
		"case_name":    c.CaseName,
		"action":       c.Action,
		"product_id":   c.ProductID,
		"product_name": c.ProductName,
		"price":        c.Price,
	}
}

// ValidateRequiredFields reports every field that is absent or holds a zero
// value.
func ValidateRequiredFields(fields map[string]any, required ...string) error {
	var missing []string
	for _, name := range required {
		value, ok := fields[name]
		if !ok || isZero(value) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isZero(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case int:
		return v == 0
	case float64:
		return v == 0
	case bool:
		return !v
	default:
		return false
	}
}
