// SPDX-License-Identifier: MIT
package mathlib

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

// Settings are declared with one-byte packing by the engine and passed by
// value. Flags are four-byte BOOLs. Go hands over their byte images, which
// are copied into these.
#pragma pack(push, 1)
typedef struct {
	int sampling_rate;
	int process_win_freq;
	int fft_window;
	int n_first_sec_skipped;
	int32_t bipolar_mode;
	int channels_number;
	int channel_for_analysis;
} sm_math_lib_setting;

typedef struct {
	int art_bord;
	int allowed_percent_artpoints;
	int raw_betap_limit;
	int total_pow_border;
	int global_artwin_sec;
	int32_t spect_art_by_totalp;
	int32_t hanning_win_spectrum;
	int32_t hamming_win_spectrum;
	int num_wins_for_quality_avg;
} sm_artifact_detect_setting;

typedef struct {
	int ampl_art_detect_win_size;
	int ampl_art_zerod_area;
	int ampl_art_extremum_border;
} sm_short_artifact_detect_setting;

typedef struct {
	int n_sec_for_instant_estimation;
	int n_sec_for_averaging;
} sm_mental_and_spectral_setting;
#pragma pack(pop)

_Static_assert(sizeof(sm_math_lib_setting) == 28, "MathLibSetting layout");
_Static_assert(sizeof(sm_artifact_detect_setting) == 36, "ArtifactDetectSetting layout");
_Static_assert(sizeof(sm_short_artifact_detect_setting) == 12, "ShortArtifactDetectSetting layout");
_Static_assert(sizeof(sm_mental_and_spectral_setting) == 8, "MentalAndSpectralSetting layout");

static void* sm_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static const char* sm_dlerror(void) {
	return dlerror();
}

static void* sm_dlsym(void* h, const char* name, const char** err) {
	dlerror();
	void* p = dlsym(h, name);
	*err = dlerror();
	return p;
}

static int sm_dlclose(void* h) {
	return dlclose(h);
}

// Every entry point is reached through a pointer from dlsym. The trampolines
// below are grouped by signature; pointer arguments are passed as void*.

typedef void* (*sm_create_fn)(sm_math_lib_setting, sm_artifact_detect_setting,
	sm_short_artifact_detect_setting, sm_mental_and_spectral_setting, void*);

static void* sm_create(void* fn, const void* mls, const void* ads,
	const void* sads, const void* mss, void* st) {
	sm_math_lib_setting a;
	sm_artifact_detect_setting b;
	sm_short_artifact_detect_setting c;
	sm_mental_and_spectral_setting d;
	memcpy(&a, mls, sizeof a);
	memcpy(&b, ads, sizeof b);
	memcpy(&c, sads, sizeof c);
	memcpy(&d, mss, sizeof d);
	return ((sm_create_fn)fn)(a, b, c, d, st);
}

typedef void (*sm_free_fn)(void*);
static void sm_free(void* fn, void* lib) {
	((sm_free_fn)fn)(lib);
}

// bool f(MathLib*, OpStatus*)
typedef bool (*sm_op_fn)(void*, void*);
static bool sm_op(void* fn, void* lib, void* st) {
	return ((sm_op_fn)fn)(lib, st);
}

// bool f(MathLib*, bool, OpStatus*)
typedef bool (*sm_op_bool_fn)(void*, bool, void*);
static bool sm_op_bool(void* fn, void* lib, bool v, void* st) {
	return ((sm_op_bool_fn)fn)(lib, v, st);
}

// bool f(MathLib*, int, OpStatus*); also used for SideType arguments.
typedef bool (*sm_op_int_fn)(void*, int, void*);
static bool sm_op_int(void* fn, void* lib, int v, void* st) {
	return ((sm_op_int_fn)fn)(lib, v, st);
}

// bool f(MathLib*, T* out, OpStatus*)
typedef bool (*sm_op_out_fn)(void*, void*, void*);
static bool sm_op_out(void* fn, void* lib, void* out, void* st) {
	return ((sm_op_out_fn)fn)(lib, out, st);
}

// bool f(MathLib*, T* data, size_t count, OpStatus*)
typedef bool (*sm_op_push_fn)(void*, void*, size_t, void*);
static bool sm_op_push(void* fn, void* lib, void* data, size_t n, void* st) {
	return ((sm_op_push_fn)fn)(lib, data, n, st);
}

// bool f(MathLib*, T* data, int* count, OpStatus*)
typedef bool (*sm_op_read_fn)(void*, void*, int*, void*);
static bool sm_op_read(void* fn, void* lib, void* data, int* n, void* st) {
	return ((sm_op_read_fn)fn)(lib, data, n, st);
}

// bool f(MathLib*, int, T* out, OpStatus*)
typedef bool (*sm_op_int_out_fn)(void*, int, void*, void*);
static bool sm_op_int_out(void* fn, void* lib, int v, void* out, void* st) {
	return ((sm_op_int_out_fn)fn)(lib, v, out, st);
}

typedef bool (*sm_weights_fn)(void*, double, double, double, double, double, void*);
static bool sm_weights(void* fn, void* lib, double d, double t, double a,
	double b, double g, void* st) {
	return ((sm_weights_fn)fn)(lib, d, t, a, b, g, st);
}

typedef bool (*sm_zero_waves_fn)(void*, bool, int, int, int, int, int, void*);
static bool sm_zero_waves(void* fn, void* lib, bool active, int d, int t,
	int a, int b, int g, void* st) {
	return ((sm_zero_waves_fn)fn)(lib, active, d, t, a, b, g, st);
}
*/
import "C"

import (
	"errors"
	"unsafe"
)

func dlopen(path string) (unsafe.Pointer, error) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))

	h := C.sm_dlopen(cs)
	if h == nil {
		return nil, errors.New(dlerror())
	}
	return h, nil
}

func dlerror() string {
	if e := C.sm_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

func dlsym(h unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))

	var cerr *C.char
	p := C.sm_dlsym(h, cs, &cerr)
	if cerr != nil {
		return nil, errors.New(C.GoString(cerr))
	}
	if p == nil {
		return nil, errors.New("symbol resolved to NULL")
	}
	return p, nil
}

func dlclose(h unsafe.Pointer) error {
	if C.sm_dlclose(h) != 0 {
		return errors.New(dlerror())
	}
	return nil
}

func callCreate(fn unsafe.Pointer, mls, ads, sads, mss []byte, st unsafe.Pointer) unsafe.Pointer {
	return C.sm_create(fn,
		unsafe.Pointer(&mls[0]), unsafe.Pointer(&ads[0]),
		unsafe.Pointer(&sads[0]), unsafe.Pointer(&mss[0]), st)
}

func callFree(fn, lib unsafe.Pointer) {
	C.sm_free(fn, lib)
}

func callOp(fn, lib, st unsafe.Pointer) bool {
	return bool(C.sm_op(fn, lib, st))
}

func callOpBool(fn, lib unsafe.Pointer, v bool, st unsafe.Pointer) bool {
	return bool(C.sm_op_bool(fn, lib, C.bool(v), st))
}

func callOpInt(fn, lib unsafe.Pointer, v int, st unsafe.Pointer) bool {
	return bool(C.sm_op_int(fn, lib, C.int(v), st))
}

func callOpOut(fn, lib, out, st unsafe.Pointer) bool {
	return bool(C.sm_op_out(fn, lib, out, st))
}

func callOpPush(fn, lib, data unsafe.Pointer, n int, st unsafe.Pointer) bool {
	return bool(C.sm_op_push(fn, lib, data, C.size_t(n), st))
}

func callOpRead(fn, lib, data unsafe.Pointer, n *int32, st unsafe.Pointer) bool {
	return bool(C.sm_op_read(fn, lib, data, (*C.int)(unsafe.Pointer(n)), st))
}

func callOpIntOut(fn, lib unsafe.Pointer, v int, out, st unsafe.Pointer) bool {
	return bool(C.sm_op_int_out(fn, lib, C.int(v), out, st))
}

func callWeights(fn, lib unsafe.Pointer, w [5]float64, st unsafe.Pointer) bool {
	return bool(C.sm_weights(fn, lib,
		C.double(w[0]), C.double(w[1]), C.double(w[2]), C.double(w[3]), C.double(w[4]), st))
}

func callZeroWaves(fn, lib unsafe.Pointer, active bool, w [5]int, st unsafe.Pointer) bool {
	return bool(C.sm_zero_waves(fn, lib, C.bool(active),
		C.int(w[0]), C.int(w[1]), C.int(w[2]), C.int(w[3]), C.int(w[4]), st))
}
