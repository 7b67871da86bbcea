package services

// PlaintextCredentials is the stand-in credential decryptor for
// deployments that store passwords unencrypted. Installations with a KMS
// plug their own interfaces.CredentialDecryptor into the handler wiring.
type PlaintextCredentials struct{}

func (PlaintextCredentials) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}
