// Copyright (c) smart-router Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Smart Router HTTP API 的请求处理器实现。

# 概述

handlers 包实现了网关全部 HTTP 端点的请求处理逻辑，包括聊天补全、模型
列表、API Key 管理以及健康检查，并提供统一的响应/错误写入辅助函数。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - ChatHandler    — POST /v1/chat/completions，委托给 dispatcher 完成
     的选择/获取凭证/转发/故障转移流程
  - ModelsHandler  — GET /v1/models，按当前可用 provider 集合过滤模型注册表
  - APIKeyHandler  — 客户端 API Key 的管理员 CRUD（ 外部协作者）
  - HealthHandler  — /health /healthz /ready /version，支持可插拔 HealthCheck
  - ResponseWriter — 包装 http.ResponseWriter 以捕获状态码供中间件使用

# 主要能力

  - 统一响应格式：WriteJSON / WriteSuccess / WriteError
  - OpenAI 兼容错误体：WriteOpenAIError、WriteRateLimitExhausted（Google
    风格 RESOURCE_EXHAUSTED 或通用 rate_limit_exceeded，）
  - 请求校验：DecodeJSONBody（大小限制 + 严格模式）、ValidateContentType
  - 可扩展健康检查：RegisterCheck 注册 DatabaseHealthCheck 等实现
*/
package handlers
