// Package policy holds the content-policy tables that drive text cleaning,
// validation, tagging and similarity scoring.
//
// The tables are declarative data, not logic: synonym substitutions, banned
// words, noise tokens, topic categories with their keyword lists, and the
// keyword importance weights used by the similarity scorer. A policy is
// loaded once at startup (built-in defaults, optionally overridden by a YAML
// file) and is read-only afterwards.
package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one topic category: a label plus the keywords whose presence
// assigns that label to a text. Compound categories are the special-case
// labels layered on top of the base set (vehicle, invoicing, urgency, ...).
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Compound bool     `yaml:"compound,omitempty"`
}

// Policy is the full content-policy table set.
type Policy struct {
	// Synonyms maps surface forms to their canonical replacement.
	Synonyms map[string]string `yaml:"synonyms"`

	// BannedWords reject a message outright when present.
	BannedWords []string `yaml:"banned_words"`

	// TestKeywords mark QA/test traffic that must not enter the pipeline.
	TestKeywords []string `yaml:"test_keywords"`

	// NoiseTokens are literal placeholder tokens stripped during cleaning
	// (media markers and similar).
	NoiseTokens []string `yaml:"noise_tokens"`

	// BoilerplatePhrases are scripted greetings and system phrases stripped
	// during cleaning; a message left empty afterwards is dropped.
	BoilerplatePhrases []string `yaml:"boilerplate_phrases"`

	// Categories drive topic tagging and the keyword-category component of
	// context matching.
	Categories []Category `yaml:"categories"`

	// TagWeights holds per-tag weights for the tag-overlap score. Tags not
	// listed here weigh 1.0.
	TagWeights map[string]float64 `yaml:"tag_weights"`

	// KeywordWeights is the importance table for the weighted keyword term
	// of lexical similarity and for keyword-category scoring. Keywords not
	// listed weigh 1.0 in category scoring and do not contribute to the
	// lexical keyword term at all.
	KeywordWeights map[string]float64 `yaml:"keyword_weights"`

	// CustomerPrefixes identify customer sender labels by prefix.
	CustomerPrefixes []string `yaml:"customer_prefixes"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		Synonyms: map[string]string{
			"APP":   "应用",
			"app":   "应用",
			"客服小姐姐": "客服人员",
			"退换货":   "退货/换货",
			"亲亲":    "您好",
			"亲":     "您好",
		},
		BannedWords: []string{"傻逼", "他妈的", "操", "滚", "白痴", "笨蛋"},
		TestKeywords: []string{
			"test", "测试", "测试数据", "测试用例", "测试环境",
		},
		NoiseTokens: []string{
			"[图片]", "[表情]", "[语音]", "[视频]", "[文件]",
		},
		BoilerplatePhrases: []string{
			"欢迎光临", "很高兴为您服务", "请问有什么可以帮您", "感谢您的咨询",
			"祝您生活愉快", "本次服务已结束",
		},
		Categories: []Category{
			{Name: "支付问题", Keywords: []string{
				"支付", "付款", "退款", "转账", "余额", "费用", "收费", "价格",
				"金额", "扣费", "扣款", "支付方式", "支付宝", "微信支付",
			}},
			{Name: "物流问题", Keywords: []string{
				"快递", "物流", "配送", "发货", "收货", "运输", "送达", "派送",
				"包裹", "快递费", "运费",
			}},
			{Name: "账户问题", Keywords: []string{
				"登录", "注册", "密码", "账号", "认证", "实名", "身份", "绑定",
				"解绑", "注销", "挂失", "找回",
			}},
			{Name: "商品问题", Keywords: []string{
				"商品", "产品", "质量", "规格", "型号", "品牌", "库存", "缺货",
				"断货", "下架", "上架",
			}},
			{Name: "订单问题", Keywords: []string{
				"订单", "下单", "取消", "修改", "查询", "跟踪", "状态", "进度",
				"确认", "退货",
			}},
			{Name: "服务问题", Keywords: []string{
				"服务", "客服", "售后", "维修", "保修", "保养", "安装", "调试",
				"培训", "指导", "咨询",
			}},
			{Name: "系统问题", Keywords: []string{
				"系统", "软件", "程序", "应用", "app", "网页", "网站", "网络",
				"连接", "卡顿", "崩溃", "错误",
			}},
			{Name: "安全隐私", Keywords: []string{
				"安全", "隐私", "保护", "泄露", "加密", "授权", "权限", "验证",
			}},
			{Name: "优惠活动", Keywords: []string{
				"优惠", "活动", "促销", "折扣", "满减", "红包", "积分", "会员",
				"vip", "特权",
			}},
			{Name: "投诉建议", Keywords: []string{
				"投诉", "建议", "反馈", "意见", "举报", "维权", "纠纷", "争议",
				"不满", "差评",
			}},
			{Name: "ETC业务", Compound: true, Keywords: []string{
				"etc", "高速公路", "通行费", "收费站", "etc卡", "etc设备",
			}},
			{Name: "车辆相关", Compound: true, Keywords: []string{
				"车牌", "车辆", "汽车", "驾照", "驾驶证", "行驶证", "违章",
				"年检", "保险",
			}},
			{Name: "票据问题", Compound: true, Keywords: []string{
				"发票", "票据", "收据", "报销", "凭证", "单据",
			}},
			{Name: "紧急问题", Compound: true, Keywords: []string{
				"紧急", "立即", "马上", "尽快", "加急",
			}},
		},
		TagWeights: map[string]float64{
			"支付问题": 1.2,
			"投诉建议": 1.2,
			"ETC业务": 1.1,
			"紧急问题": 0.8,
		},
		KeywordWeights: map[string]float64{
			"退款": 1.0, "退货": 1.0, "投诉": 1.0,
			"支付": 0.9, "扣费": 0.9, "扣款": 0.9, "付款": 0.9,
			"订单": 0.8, "发票": 0.8, "物流": 0.8, "快递": 0.8,
			"账号": 0.7, "密码": 0.7, "登录": 0.7,
			"etc": 0.9, "余额": 0.8, "发货": 0.7,
			"优惠": 0.5, "积分": 0.5, "会员": 0.5,
			"app": 0.4, "应用": 0.4, "系统": 0.4,
		},
		CustomerPrefixes: []string{"mImjj"},
	}
}

// Load reads a YAML policy file. Fields absent from the file fall back to
// the built-in defaults, so a policy file only needs to override the tables
// it cares about.
func Load(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}

	p := Default()
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return p, nil
}

// Validate checks structural invariants of the table set.
func (p *Policy) Validate() error {
	seen := make(map[string]bool, len(p.Categories))
	for _, c := range p.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", name)
		}
	}
	for k, w := range p.KeywordWeights {
		if w < 0 {
			return fmt.Errorf("keyword %q has negative weight %v", k, w)
		}
	}
	for t, w := range p.TagWeights {
		if w < 0 {
			return fmt.Errorf("tag %q has negative weight %v", t, w)
		}
	}
	return nil
}

// TagWeight returns the weight of a tag (1.0 when unlisted).
func (p *Policy) TagWeight(tag string) float64 {
	if w, ok := p.TagWeights[tag]; ok {
		return w
	}
	return 1.0
}

// KeywordWeight returns the importance weight of a keyword (1.0 when
// unlisted). Membership in the importance table is a separate question;
// use HasKeyword for that.
func (p *Policy) KeywordWeight(kw string) float64 {
	if w, ok := p.KeywordWeights[strings.ToLower(kw)]; ok {
		return w
	}
	return 1.0
}

// HasKeyword reports whether kw is present in the importance table.
func (p *Policy) HasKeyword(kw string) bool {
	_, ok := p.KeywordWeights[strings.ToLower(kw)]
	return ok
}

// SortedSynonymKeys returns synonym keys longest-first (then lexicographic)
// so that substitution is deterministic and longer surface forms win over
// their own prefixes.
func (p *Policy) SortedSynonymKeys() []string {
	keys := make([]string, 0, len(p.Synonyms))
	for k := range p.Synonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
