package tlsutil

import "crypto/tls"

// ServerTLSConfig 返回服务端 TLS 安全基线。
// http.Server.ServeTLS 会克隆该配置并挂载证书对，
// 因此这里只声明协商约束：最低 TLS 1.2，TLS 1.2 下仅允许 AEAD 套件
// （TLS 1.3 套件由标准库固定，无需列出）。
func ServerTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}
