// Copyright (c) smart-router Authors.
// Licensed under the MIT License.

/*
Package types 提供 Smart Router 网关的全局共享类型定义。

# 概述

types 是网关最底层的公共包，不依赖任何内部包，为 api、dispatcher、
selector、scoring、profile 等上层模块提供统一的类型契约。所有跨包共享
的消息、token 计数和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message       — 对话消息（Role、Content、ToolCalls、Images），对应
     客户端请求体中的 messages[] 条目
  - ToolCall / ToolSchema / ToolResult — 工具调用与结果的最小表示
  - TokenUsage / Tokenizer / EstimateTokenizer — 按字符数的近似 token
    计数；请求日志中的 estimatedCostUsd 由 dispatcher 用 tiktoken 估算，
    不使用 EstimateTokenizer
  - Error / ErrorCode — 结构化错误体系，承载  的失败分类
    （auth、rate_limit、billing、timeout、model_not_found、format、
    unknown）与 HTTP 状态码、Retryable、Provider 标记；Cause 字段带
    json:"-" 标签，内部包装错误永远不会泄漏给客户端
*/
package types
