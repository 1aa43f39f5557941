// Package tlsutil 提供 VeriFlow HTTP 监听器的统一 TLS 安全基线
// （TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
