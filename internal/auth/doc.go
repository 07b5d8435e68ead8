// Package auth proves which identity is calling the engine.
//
// A caller's identity travels in the context as a Principal. The engine
// asks two questions of it through ContextAuthorizer: who does the caller
// claim to be (Caller), and does the caller control a given identity
// (RequireAuth). A claim alone is not proof; only an authenticated
// principal satisfies RequireAuth.
//
// Principals become authenticated either by a verified HS256 JWT
// (JWTVerifier) or, for local single-operator use, by being trusted
// directly with Trusted.
package auth
