package service

// KeyedMutexSize exposes the live entry count to tests.
func KeyedMutexSize(k *KeyedMutex) int { return k.size() }
