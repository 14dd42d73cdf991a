package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// 中文说明：
// LLM 抽取调用的原文落盘：prompt 与模型返回写入独立日志文件，
// 便于排查"为什么这个页面没解析出价格"。默认关闭。

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	Title string
	Body  string
}

func logLLM(kind, provider, product string, sections []llmSection) {
	llmMu.Lock()
	sink := llmLog
	llmMu.Unlock()
	if sink == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	for _, tag := range []string{kind, provider, product} {
		if tag != "" {
			b.WriteString("[")
			b.WriteString(tag)
			b.WriteString("]")
		}
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	sink.Print(b.String())
}

// LogLLMRequest 记录一次抽取请求的 system/user prompt（payload 需显式开启）。
func LogLLMRequest(provider, product, systemPrompt, userPrompt, payload string) {
	sections := []llmSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	}
	if llmDumpPayload && strings.TrimSpace(payload) != "" {
		sections = append(sections, llmSection{Title: "PAYLOAD", Body: payload})
	}
	logLLM("extract-request", provider, product, sections)
}

// LogLLMResponse 记录模型原始返回。
func LogLLMResponse(provider, product, raw string) {
	logLLM("extract-response", provider, product, []llmSection{{Title: "RAW", Body: raw}})
}
