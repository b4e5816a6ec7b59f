package bttconf

import (
	"regexp"
	"strings"
	"time"
)

// 已知配置项
const (
	KeyReloadIntervalSeconds = "reload-interval-seconds"

	KeyWarmupRequestCount             = "warmup-request-count"
	KeyWarmupDurationSeconds          = "warmup-duration-seconds"
	KeyCollectRequestStats            = "collect-request-stats"
	KeyRequestTimerEnabled            = "request-timer-enabled"
	KeyCollectHeaders                 = "collect-headers"
	KeyExcludedHeaders                = "excluded-headers"
	KeyConfidentialQueryParamPatterns = "confidential-query-param-patterns"
	KeyReportingIntervalConsole       = "reporting-interval-console-seconds"
	KeyReportToManagementInterface    = "report-to-management-interface"
	KeyReportingIntervalRemote        = "reporting-interval-remote-seconds"
	KeyRemoteHost                     = "remote-host"
	KeyRemotePort                     = "remote-port"
	KeyMinExecutionTimeNanos          = "min-execution-time-nanos"
	KeyCallStackSamplingRate          = "call-stack-sampling-rate"
	KeyLogCallStacks                  = "log-call-stacks"
	KeyReportCallStacksRemotely       = "report-call-stacks-remotely"
	KeyApplicationName                = "application-name"
	KeyInstanceName                   = "instance-name"
	KeyServerURL                      = "server-url"
	KeyExcludedMetricPatterns         = "excluded-metric-patterns"
	KeyURLGroupingPatterns            = "url-grouping-patterns"
)

// 列表类配置的默认值 (原始格式)
const (
	DefaultExcludedHeaders                = "cookie"
	DefaultConfidentialQueryParamPatterns = `(?i).*pass.*, (?i).*credit.*, (?i).*pwd.*`
	DefaultURLGroupingPatterns            = `/\d+: /{id}, ` +
		`(.*)\.js: *.js, ` +
		`(.*)\.css: *.css, ` +
		`(.*)\.jpg: *.jpg, ` +
		`(.*)\.jpeg: *.jpeg, ` +
		`(.*)\.png: *.png`
)

// Settings 提供已知配置项的类型化访问，每次调用都读取 Store 的当前值。
type Settings struct {
	store *Store
}

// NewSettings 包装 store。
func NewSettings(store *Store) *Settings {
	return &Settings{store: store}
}

// Store 返回底层 Store。
func (c *Settings) Store() *Store { return c.store }

func (c *Settings) WarmupRequestCount() int {
	return c.store.GetInt(KeyWarmupRequestCount, 0)
}

func (c *Settings) WarmupDuration() time.Duration {
	return c.store.GetDuration(KeyWarmupDurationSeconds, 0)
}

func (c *Settings) CollectRequestStats() bool {
	return c.store.GetBool(KeyCollectRequestStats, true)
}

func (c *Settings) RequestTimerEnabled() bool {
	return c.store.GetBool(KeyRequestTimerEnabled, true)
}

func (c *Settings) CollectHeaders() bool {
	return c.store.GetBool(KeyCollectHeaders, true)
}

// ExcludedHeaders 小写的 Header 名。
func (c *Settings) ExcludedHeaders() []string {
	return c.store.GetLowerStrings(KeyExcludedHeaders, DefaultExcludedHeaders)
}

// IsHeaderExcluded Header 名大小写不敏感。
func (c *Settings) IsHeaderExcluded(name string) bool {
	name = strings.ToLower(name)
	for _, h := range c.ExcludedHeaders() {
		if h == name {
			return true
		}
	}
	return false
}

func (c *Settings) ConfidentialQueryParamPatterns() []*regexp.Regexp {
	return c.store.GetPatterns(KeyConfidentialQueryParamPatterns, DefaultConfidentialQueryParamPatterns)
}

// IsConfidentialQueryParam 参数名匹配任一保密正则时返回 true。
func (c *Settings) IsConfidentialQueryParam(name string) bool {
	for _, re := range c.ConfidentialQueryParamPatterns() {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (c *Settings) ConsoleReportingInterval() time.Duration {
	return c.store.GetDuration(KeyReportingIntervalConsole, time.Minute)
}

func (c *Settings) ReportToManagementInterface() bool {
	return c.store.GetBool(KeyReportToManagementInterface, true)
}

func (c *Settings) RemoteReportingInterval() time.Duration {
	return c.store.GetDuration(KeyReportingIntervalRemote, time.Minute)
}

// RemoteHost 未配置时 ok 为 false。
func (c *Settings) RemoteHost() (string, bool) {
	return c.store.LookupString(KeyRemoteHost)
}

func (c *Settings) RemotePort() int {
	return c.store.GetInt(KeyRemotePort, 2003)
}

func (c *Settings) MinExecutionTimeNanos() int64 {
	return c.store.GetInt64(KeyMinExecutionTimeNanos, 0)
}

// CallStackSamplingRate 每 N 个请求采集一次调用栈，-1 表示禁用。
func (c *Settings) CallStackSamplingRate() int {
	return c.store.GetInt(KeyCallStackSamplingRate, -1)
}

// CallStackSamplingEnabled 采样率为正时启用。
func (c *Settings) CallStackSamplingEnabled() bool {
	return c.CallStackSamplingRate() > 0
}

func (c *Settings) LogCallStacks() bool {
	return c.store.GetBool(KeyLogCallStacks, true)
}

func (c *Settings) ReportCallStacksRemotely() bool {
	return c.store.GetBool(KeyReportCallStacksRemotely, false)
}

func (c *Settings) ApplicationName() (string, bool) {
	return c.store.LookupString(KeyApplicationName)
}

func (c *Settings) InstanceName() (string, bool) {
	return c.store.LookupString(KeyInstanceName)
}

func (c *Settings) ServerURL() (string, bool) {
	return c.store.LookupString(KeyServerURL)
}

func (c *Settings) ExcludedMetricPatterns() []string {
	return c.store.GetStrings(KeyExcludedMetricPatterns, "")
}

func (c *Settings) URLGroupingPatterns() PatternGroup {
	return c.store.GetPatternGroup(KeyURLGroupingPatterns, DefaultURLGroupingPatterns)
}

// GroupURL 用第一个匹配的规则改写 path，没有匹配时原样返回。
func (c *Settings) GroupURL(path string) string {
	if grouped, ok := c.URLGroupingPatterns().Replace(path); ok {
		return grouped
	}
	return path
}

// Resolved 是全部已知配置项的解析结果，用于导出。
type Resolved struct {
	Generation                     uint64   `yaml:"generation"`
	Hash                           string   `yaml:"hash"`
	Source                         string   `yaml:"source"`
	ReloadInterval                 string   `yaml:"reload_interval"`
	WarmupRequestCount             int      `yaml:"warmup_request_count"`
	WarmupDuration                 string   `yaml:"warmup_duration"`
	CollectRequestStats            bool     `yaml:"collect_request_stats"`
	RequestTimerEnabled            bool     `yaml:"request_timer_enabled"`
	CollectHeaders                 bool     `yaml:"collect_headers"`
	ExcludedHeaders                []string `yaml:"excluded_headers"`
	ConfidentialQueryParamPatterns []string `yaml:"confidential_query_param_patterns"`
	ConsoleReportingInterval       string   `yaml:"console_reporting_interval"`
	ReportToManagementInterface    bool     `yaml:"report_to_management_interface"`
	RemoteReportingInterval        string   `yaml:"remote_reporting_interval"`
	RemoteHost                     string   `yaml:"remote_host,omitempty"`
	RemotePort                     int      `yaml:"remote_port"`
	MinExecutionTimeNanos          int64    `yaml:"min_execution_time_nanos"`
	CallStackSamplingRate          int      `yaml:"call_stack_sampling_rate"`
	LogCallStacks                  bool     `yaml:"log_call_stacks"`
	ReportCallStacksRemotely       bool     `yaml:"report_call_stacks_remotely"`
	ApplicationName                string   `yaml:"application_name,omitempty"`
	InstanceName                   string   `yaml:"instance_name,omitempty"`
	ServerURL                      string   `yaml:"server_url,omitempty"`
	ExcludedMetricPatterns         []string `yaml:"excluded_metric_patterns"`
	URLGroupingPatterns            []string `yaml:"url_grouping_patterns"`
}

// Resolve 解析全部已知配置项。
func (c *Settings) Resolve() Resolved {
	ss := c.store.Snapshot()
	r := Resolved{
		Generation:                  ss.Generation,
		Hash:                        ss.Hash,
		Source:                      ss.Source,
		ReloadInterval:              c.store.ReloadInterval().String(),
		WarmupRequestCount:          c.WarmupRequestCount(),
		WarmupDuration:              c.WarmupDuration().String(),
		CollectRequestStats:         c.CollectRequestStats(),
		RequestTimerEnabled:         c.RequestTimerEnabled(),
		CollectHeaders:              c.CollectHeaders(),
		ExcludedHeaders:             c.ExcludedHeaders(),
		ConsoleReportingInterval:    c.ConsoleReportingInterval().String(),
		ReportToManagementInterface: c.ReportToManagementInterface(),
		RemoteReportingInterval:     c.RemoteReportingInterval().String(),
		RemotePort:                  c.RemotePort(),
		MinExecutionTimeNanos:       c.MinExecutionTimeNanos(),
		CallStackSamplingRate:       c.CallStackSamplingRate(),
		LogCallStacks:               c.LogCallStacks(),
		ReportCallStacksRemotely:    c.ReportCallStacksRemotely(),
		ExcludedMetricPatterns:      c.ExcludedMetricPatterns(),
	}
	r.RemoteHost, _ = c.RemoteHost()
	r.ApplicationName, _ = c.ApplicationName()
	r.InstanceName, _ = c.InstanceName()
	r.ServerURL, _ = c.ServerURL()
	for _, re := range c.ConfidentialQueryParamPatterns() {
		r.ConfidentialQueryParamPatterns = append(r.ConfidentialQueryParamPatterns, re.String())
	}
	for _, rule := range c.URLGroupingPatterns() {
		r.URLGroupingPatterns = append(r.URLGroupingPatterns, rule.Pattern.String()+": "+rule.Label)
	}
	return r
}
