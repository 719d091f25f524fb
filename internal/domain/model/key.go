package model

// SymmetricKeySize is the length in bytes of the credential encryption key.
const SymmetricKeySize = 32

// SymmetricKey is the process-wide AES-256 key. It is produced once at startup
// and passed explicitly to every component that encrypts or decrypts.
type SymmetricKey [SymmetricKeySize]byte
